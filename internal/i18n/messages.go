package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"ghiblyze/internal/domain"
)

// Supported lists the response languages, default first.
var Supported = []language.Tag{language.English, language.Japanese}

var matcher = language.NewMatcher(Supported)

var japanese = map[string]string{
	domain.MsgPromptRequired:                       "プロンプトを入力してください",
	domain.MsgPromptTooShort:                       "プロンプトが短すぎます。もう少し詳しく説明してください。",
	domain.MsgImageRequired:                        "有効な画像ファイルを指定してください",
	domain.MsgImageType:                            "画像ファイル（JPEG、PNG など）をアップロードしてください",
	domain.MsgImageTooLarge:                        "画像サイズは10MB未満にしてください",
	domain.MsgInputMissing:                         "プロンプトまたは画像を指定してください",
	domain.MsgInputConflict:                        "プロンプトと画像はどちらか一方のみ指定してください",
	"Unauthorized to delete this image":            "この画像を削除する権限がありません",
	"Unauthorized to download this image":          "この画像をダウンロードする権限がありません",
	"Failed to download image":                     "画像のダウンロードに失敗しました",
	"User ID is required":                          "ユーザーIDが必要です",
	"Failed to generate image":                     "画像の生成に失敗しました",
	"Failed to transform image":                    "画像の変換に失敗しました",
	"Failed to generate image. Please try again.":  "画像の生成に失敗しました。もう一度お試しください。",
	"Failed to transform image. Please try again.": "画像の変換に失敗しました。もう一度お試しください。",
	"Failed to store the generated image":          "生成した画像の保存に失敗しました",
	"Failed to save image to gallery":              "ギャラリーへの保存に失敗しました",
	"Failed to load gallery":                       "ギャラリーの読み込みに失敗しました",
	"No generated image is available":              "生成された画像がありません",
	"A save is already in progress":                "保存処理が進行中です",
	"Authentication required":                      "ログインが必要です",
	"Too many requests":                            "リクエストが多すぎます",
}

var cat = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range japanese {
		_ = b.SetString(language.Japanese, key, msg)
	}
	return b
}

// Match picks the supported language for a list of preferences such as an
// Accept-Language header. It falls back to English.
func Match(preferences ...string) language.Tag {
	for _, pref := range preferences {
		if pref == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(pref)
		if err != nil || len(tags) == 0 {
			continue
		}
		tag, _, confidence := matcher.Match(tags...)
		if confidence != language.No {
			return base(tag)
		}
	}
	return language.English
}

// ForCountry maps an ISO country code to a supported language.
func ForCountry(country string) (language.Tag, bool) {
	region, err := language.ParseRegion(strings.TrimSpace(country))
	if err != nil {
		return language.Und, false
	}
	tag, err := language.Compose(region)
	if err != nil {
		return language.Und, false
	}
	b, confidence := tag.Base()
	if confidence == language.No {
		return language.Und, false
	}
	return supportedBase(b)
}

// base maps a matched tag back onto its entry in Supported.
func base(tag language.Tag) language.Tag {
	b, _ := tag.Base()
	if supported, ok := supportedBase(b); ok {
		return supported
	}
	return language.English
}

func supportedBase(b language.Base) (language.Tag, bool) {
	for _, supported := range Supported {
		if sb, _ := supported.Base(); sb == b {
			return supported, true
		}
	}
	return language.Und, false
}

// Translate returns msg in locale when a translation exists.
func Translate(locale, msg string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return msg
	}
	return message.NewPrinter(tag, message.Catalog(cat)).Sprintf(msg)
}

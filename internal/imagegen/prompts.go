package imagegen

import "fmt"

const (
	negativePrompt    = "ugly, blurry, low quality, distorted, deformed"
	inferenceSteps    = 30
	guidanceScale     = 7.5
	generatedFileExt  = ".png"
	generatedMIMEType = "image/png"
)

// StyleHints are the transformation prompts used when the caller gives none.
var StyleHints = [...]string{
	"Transform into a Studio Ghibli style illustration, featuring soft, diffused lighting, watercolor brushstrokes, lush natural scenery with vibrant greenery and detailed skies, and a slightly whimsical, fantastical atmosphere.",
	"Apply a Studio Ghibli art style filter, focusing on warm, gentle colors, intricate background details resembling hand-painted animation, and a serene, nostalgic mood.",
	"Render this image in the style of Studio Ghibli, emphasizing expressive character features (if present), dreamlike environmental elements, and a painterly texture.",
	"Convert to Studio Ghibli aesthetic, bringing out the natural beauty, adding subtle magical touches, and using a palette of earthy tones mixed with vibrant highlights.",
}

// FormatPrompt wraps a user prompt in the Ghibli style description sent to the model.
func FormatPrompt(prompt string) string {
	return fmt.Sprintf("Create a Studio Ghibli style illustration of %s. The image should have the characteristic Ghibli art style with soft colors, detailed backgrounds, and whimsical elements.", prompt)
}

package middleware

import (
	"encoding/json"
	"net/http"

	"ghiblyze/internal/i18n"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the API error envelope, translating message to the
// request locale.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if r != nil {
		message = i18n.Translate(LocaleFromContext(r.Context()), message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

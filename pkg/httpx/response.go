package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body returned by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// WriteJSON writes v with the given status code. Responses carry no-store
// cache headers since most of them embed credentials or account state.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, code int, message string, data any) {
	WriteJSON(w, code, Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope. errs may be nil or a per-field error map.
func Error(w http.ResponseWriter, code int, message string, errs any) {
	WriteJSON(w, code, Envelope{Success: false, Message: message, Errors: errs})
}

// NoCache prevents intermediaries from caching sensitive responses.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

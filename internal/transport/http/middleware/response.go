package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

// writeJSONError writes the same error shape the handlers use.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, ErrorCode: status})
}

// Package respond writes JSON bodies for the HTTP handlers.
package respond

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type errorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"status":"error","error":msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Status: "error", Error: msg})
}

// Decode reads the request body into dst. Unknown fields are rejected by the schema middleware,
// not here.
func Decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// IntQuery returns the integer query parameter key clamped to [lo, hi], or def when absent or malformed.
func IntQuery(r *http.Request, key string, def, lo, hi int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

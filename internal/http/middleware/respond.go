package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteDetail writes the minimal machine-readable error body used by the
// non-OpenAPI surfaces: a status code and a stable detail code.
func WriteDetail(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": code})
}

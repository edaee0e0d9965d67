package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondWithError writes an error body under the "detail" key, which
// is what the web client expects from every failure response.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"detail": message})
}

// RespondWithMessage writes a status-message body for operations whose
// only useful result is confirmation.
func RespondWithMessage(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"message": message})
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

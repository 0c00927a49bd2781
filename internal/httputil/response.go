package httputil

import (
	"encoding/json"
	"net/http"
)

// SuccessEnvelope wraps every successful response
type SuccessEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorEnvelope wraps every failed response
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  any    `json:"errors"`
}

// RespondSuccess writes data inside the success envelope
func RespondSuccess(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, SuccessEnvelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondError writes the failure envelope. details may be nil.
func RespondError(w http.ResponseWriter, status int, message string, details any) {
	respondJSON(w, status, ErrorEnvelope{
		Success: false,
		Message: message,
		Errors:  details,
	})
}

// respondJSON writes a JSON response with the given status code.
// It marshals first so an encoding failure never leaves a partial response.
func respondJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"success":false,"message":"failed to encode response","errors":null}`)
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

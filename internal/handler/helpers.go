package handler

import (
	"net/http"
	"strings"

	"repairchat/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	httputil.RespondDomainError(w, err)
}

// pathID returns the {id} route segment, answering 400 when it is blank
func pathID(w http.ResponseWriter, r *http.Request, resource string) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, resource+" ID is required", nil)
		return "", false
	}
	return id, true
}

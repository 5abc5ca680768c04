// Package handlers serves the discovery HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/topagents/idp-discovery/internal/idp"
	"github.com/topagents/idp-discovery/internal/logging"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type errorBody struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	IDPID     string   `json:"idp_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: statusError, Message: message})
}

// writeIDPError maps err onto the status table of phase. Errors that are not
// *idp.Error are storage or programming failures and become a generic 500.
func writeIDPError(w http.ResponseWriter, r *http.Request, phase idp.Phase, err error, idpID string) {
	var ierr *idp.Error
	if !errors.As(err, &ierr) {
		log.Printf("❌ [%s] %s %s failed: %v", logging.GetRequestID(r.Context()), r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Status:  statusError,
			Message: "Internal server error",
			IDPID:   idpID,
		})
		return
	}

	if ierr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ierr.RetryAfter.Seconds()))))
	}
	writeJSON(w, ierr.StatusCode(phase), errorBody{
		Status:    statusError,
		Message:   ierr.Message,
		ErrorKind: string(ierr.Kind),
		Fields:    ierr.Fields,
		IDPID:     idpID,
	})
}

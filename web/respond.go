package web

import (
	"encoding/json"
	"net/http"

	"github.com/schemagate/schemagate/pkg/serr"
)

// errorBody is the wire shape of every failure: a stable code and a
// human-readable message.
type errorBody struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := serr.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case serr.OperationForbidden:
		status = http.StatusForbidden
	case serr.InternalError:
		status = http.StatusInternalServerError
	}
	message := err.Error()
	if code == serr.InternalError {
		// Internal details stay in the logs.
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Code: code, Error: message})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/callshield/callshield/pkg/gateway/apierror"
	"github.com/callshield/callshield/pkg/gateway/mw"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NotFoundHandler is the mux fallback so unknown routes get the
// canonical JSON error envelope instead of the stdlib text 404.
type NotFoundHandler struct{}

func (NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apierror.TypeNotFound, "unknown route", "")
}

func writeError(w http.ResponseWriter, r *http.Request, typ apierror.Type, message, param string) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, apierror.StatusFromType(typ), &apierror.Error{
		Type:      typ,
		Message:   message,
		Param:     param,
		RequestID: reqID,
	})
}

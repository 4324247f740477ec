package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/termgate/termgate/internal/errdefs"
	"github.com/termgate/termgate/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// errStatus maps the error taxonomy onto HTTP statuses: rejected credentials
// 401, deny-list 403, deadline 504, vault 500, wire failure 502, unknown
// session or row 404, second session on a busy profile 409.
func errStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrProfileBusy):
		return http.StatusConflict
	case errdefs.IsAuthentication(err):
		return http.StatusUnauthorized
	case errdefs.IsPolicy(err):
		return http.StatusForbidden
	case errdefs.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errdefs.IsTransport(err):
		return http.StatusBadGateway
	case errdefs.IsVault(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, errStatus(err), err.Error())
}

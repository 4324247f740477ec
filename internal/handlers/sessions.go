package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/termgate/termgate/internal/database"
	"github.com/termgate/termgate/internal/executor"
	"github.com/termgate/termgate/internal/session"
	"github.com/termgate/termgate/internal/transport"
	"github.com/termgate/termgate/internal/vault"
)

// Sessions and Creds are wired by main before the router starts serving.
var (
	Sessions *session.Manager
	Creds    *vault.Store
)

// sessionInfo is the JSON representation of a live session.
type sessionInfo struct {
	ID           string        `json:"id"`
	ProfileID    string        `json:"profile_id"`
	Profile      string        `json:"profile"`
	Transport    string        `json:"transport"`
	State        session.State `json:"state"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

func toSessionInfo(s *session.Session) sessionInfo {
	return sessionInfo{
		ID:           s.ID,
		ProfileID:    s.Profile.ID,
		Profile:      s.Profile.Name,
		Transport:    string(s.Profile.Transport),
		State:        s.State(),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity(),
	}
}

// OpenSession connects to the device described by a stored profile.
// POST /api/v1/sessions
func OpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID string `json:"profile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	p, err := database.GetProfile(req.ProfileID)
	if err != nil {
		writeErr(w, err)
		return
	}

	secret, err := Creds.Get(p.VaultKey())
	if err != nil {
		// A console profile needs no credential; remote transports do.
		if !errors.Is(err, vault.ErrNoCredential) {
			writeErr(w, err)
			return
		}
		if transport.Kind(p.Transport) != transport.Serial {
			writeError(w, http.StatusBadRequest, "no credential stored for profile")
			return
		}
	}

	s, err := Sessions.Open(r.Context(), p.SessionProfile(), secret)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": s.ID,
		"state":      s.State(),
	})
}

// ListSessions returns every tracked session.
// GET /api/v1/sessions
func ListSessions(w http.ResponseWriter, r *http.Request) {
	all := Sessions.List()
	result := make([]sessionInfo, 0, len(all))
	for _, s := range all {
		result = append(result, toSessionInfo(s))
	}
	writeJSON(w, http.StatusOK, map[string][]sessionInfo{"sessions": result})
}

// GetSession returns one session with its transition history.
// GET /api/v1/sessions/{id}
func GetSession(w http.ResponseWriter, r *http.Request) {
	s := Sessions.Get(chi.URLParam(r, "id"))
	if s == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		sessionInfo
		Transitions []session.Transition `json:"transitions"`
		ResultCount int                  `json:"result_count"`
	}{toSessionInfo(s), s.Transitions(), len(s.History())})
}

// CloseSession tears a session down.
// DELETE /api/v1/sessions/{id}
func CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := Sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// ExecuteCommand runs one command on a session. A prompt timeout is not an
// HTTP error: the result comes back with success=false and partial output.
// POST /api/v1/sessions/{id}/commands
func ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	res, err := Sessions.Execute(r.Context(), chi.URLParam(r, "id"), req.Command, timeout)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetSessionHistory returns the in-memory result ring of a session.
// GET /api/v1/sessions/{id}/history
func GetSessionHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := Sessions.History(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if hist == nil {
		hist = []executor.Result{}
	}
	writeJSON(w, http.StatusOK, map[string][]executor.Result{"history": hist})
}

// RunMacro executes a stored macro's commands in order on a session. A
// flagged timeout result does not stop the sequence; any error does, and the
// response carries the results gathered so far.
// POST /api/v1/sessions/{id}/macros/{name}
func RunMacro(w http.ResponseWriter, r *http.Request) {
	m, err := database.GetMacroByName(chi.URLParam(r, "name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	cmds, err := m.CommandList()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Malformed macro command list")
		return
	}

	id := chi.URLParam(r, "id")
	results := make([]executor.Result, 0, len(cmds))
	for _, cmd := range cmds {
		res, err := Sessions.Execute(r.Context(), id, cmd, 0)
		if err != nil {
			writeJSON(w, errStatus(err), map[string]interface{}{
				"results":        results,
				"failed_command": cmd,
				"detail":         err.Error(),
			})
			return
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/termgate/termgate/internal/database"
	"github.com/termgate/termgate/internal/transport"
)

// profileRequest is the writable surface of a profile. CredentialRef and
// timestamps are server-managed.
type profileRequest struct {
	Name              string `json:"name"`
	Transport         string `json:"transport"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Family            string `json:"family"`
	Username          string `json:"username"`
	Device            string `json:"device"`
	BaudRate          int    `json:"baud_rate"`
	ConnectTimeoutSec int    `json:"connect_timeout_sec"`
	CommandTimeoutSec int    `json:"command_timeout_sec"`
	IdleTimeoutSec    int    `json:"idle_timeout_sec"`
}

func (req *profileRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if req.Transport != "" && !transport.Kind(req.Transport).Valid() {
		return fmt.Errorf("unknown transport %q", req.Transport)
	}
	if req.Port < 0 || req.Port > 65535 {
		return fmt.Errorf("port out of range")
	}
	return nil
}

// apply fills the model from the request, with explicit fallbacks so a PUT
// replacement produces a complete row.
func (req *profileRequest) apply(p *database.Profile) {
	p.Name = req.Name
	p.Transport = req.Transport
	if p.Transport == "" {
		p.Transport = string(transport.SSH)
	}
	p.Host = req.Host
	p.Port = req.Port
	if p.Port == 0 {
		switch transport.Kind(p.Transport) {
		case transport.SSH:
			p.Port = 22
		case transport.Telnet:
			p.Port = 23
		}
	}
	p.Family = req.Family
	if p.Family == "" {
		p.Family = "generic"
	}
	p.Username = req.Username
	p.Device = req.Device
	p.BaudRate = req.BaudRate
	if p.BaudRate == 0 {
		p.BaudRate = 9600
	}
	p.ConnectTimeoutSec = req.ConnectTimeoutSec
	p.CommandTimeoutSec = req.CommandTimeoutSec
	p.IdleTimeoutSec = req.IdleTimeoutSec
}

// ListProfiles returns all stored profiles.
// GET /api/v1/profiles
func ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := database.ListProfiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]database.Profile{"profiles": profiles})
}

// CreateProfile stores a new profile. The credential is set separately via
// the credential endpoint and never travels with the profile body.
// POST /api/v1/profiles
func CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := database.GetProfileByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	var p database.Profile
	req.apply(&p)
	if err := database.CreateProfile(&p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProfile returns one profile.
// GET /api/v1/profiles/{id}
func GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := database.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile replaces a profile wholesale. Fields absent from the body
// reset to their defaults; the credential reference is preserved.
// PUT /api/v1/profiles/{id}
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	existing, err := database.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if other, err := database.GetProfileByName(req.Name); err == nil && other.ID != existing.ID {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	req.apply(existing)
	if err := database.UpdateProfile(existing); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// DeleteProfile removes a profile, its stored credential, and any live
// session bound to it.
// DELETE /api/v1/profiles/{id}
func DeleteProfile(w http.ResponseWriter, r *http.Request) {
	p, err := database.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	if Sessions != nil {
		for _, s := range Sessions.List() {
			if s.Profile.ID == p.ID {
				Sessions.Close(s.ID)
			}
		}
	}
	if Creds != nil {
		if err := Creds.Delete(p.VaultKey()); err != nil {
			writeErr(w, err)
			return
		}
	}
	if err := database.DeleteProfile(p.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PutCredential stores the secret for a profile in the encrypted store. The
// secret is never echoed back and never logged.
// PUT /api/v1/profiles/{id}/credential
func PutCredential(w http.ResponseWriter, r *http.Request) {
	p, err := database.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := Creds.Put(p.VaultKey(), req.Secret); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// DeleteCredential removes the stored secret for a profile.
// DELETE /api/v1/profiles/{id}/credential
func DeleteCredential(w http.ResponseWriter, r *http.Request) {
	p, err := database.GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := Creds.Delete(p.VaultKey()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

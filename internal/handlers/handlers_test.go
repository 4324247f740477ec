package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/termgate/termgate/internal/database"
	"github.com/termgate/termgate/internal/session"
	"github.com/termgate/termgate/internal/transport"
	"github.com/termgate/termgate/internal/vault"
)

// setupTestDB points the package-level handle at a fresh in-memory SQLite
// database with the schema migrated.
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&database.Profile{}, &database.CatalogCommand{}, &database.Macro{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	database.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
}

// setupVault wires Creds to a store under a per-test temp directory and
// returns the store file path for on-disk assertions.
func setupVault(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	v, err := vault.Open(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	storePath := filepath.Join(dir, "credentials.enc")
	store, err := vault.OpenStore(storePath, v)
	if err != nil {
		t.Fatalf("open credential store: %v", err)
	}
	Creds = store
	return storePath
}

// setupSessions wires Sessions to a manager whose dialer hands out the given
// fake connection.
func setupSessions(t *testing.T, conn transport.Conn) {
	t.Helper()
	Sessions = session.NewManager(session.Config{
		SettleDuration: 10 * time.Millisecond,
		CommandTimeout: 100 * time.Millisecond,
		Dial: func(context.Context, transport.Options) (transport.Conn, error) {
			return conn, nil
		},
	})
	t.Cleanup(func() { Sessions.CloseAll() })
}

// newChiRequest creates an *http.Request carrying chi URL params.
func newChiRequest(method, path string, params map[string]string) *http.Request {
	return newChiRequestWithBody(method, path, params, nil)
}

// newChiRequestWithBody creates an *http.Request with chi URL params and a
// JSON body.
func newChiRequestWithBody(method, path string, params map[string]string, body []byte) *http.Request {
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return out
}

// createTestProfile inserts a profile row for the standard test switch.
func createTestProfile(t *testing.T) *database.Profile {
	t.Helper()
	p := &database.Profile{
		Name:      "core-sw-01",
		Transport: "ssh",
		Host:      "10.0.0.1",
		Port:      22,
		Family:    "cisco-ios",
		Username:  "admin",
	}
	if err := database.CreateProfile(p); err != nil {
		t.Fatalf("create test profile: %v", err)
	}
	return p
}

// openTestSession stores a credential for the profile and opens a session
// over the fake transport, returning the session ID.
func openTestSession(t *testing.T, p *database.Profile) string {
	t.Helper()
	if err := Creds.Put(p.VaultKey(), "hunter2"); err != nil {
		t.Fatalf("store credential: %v", err)
	}

	body := mustMarshal(t, map[string]string{"profile_id": p.ID})
	rec := httptest.NewRecorder()
	OpenSession(rec, newChiRequestWithBody(http.MethodPost, "/api/v1/sessions", nil, body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody(t, rec)
	id, _ := resp["session_id"].(string)
	if id == "" {
		t.Fatalf("open session response missing session_id: %v", resp)
	}
	return id
}

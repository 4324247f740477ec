package database

import (
	"encoding/json"
	"time"

	"github.com/termgate/termgate/internal/session"
	"github.com/termgate/termgate/internal/transport"
)

// Profile is a persisted device connection profile. The secret itself never
// lands in this table: CredentialRef names the entry in the encrypted
// credential store, and defaults to the profile ID.
type Profile struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	Name      string `gorm:"uniqueIndex;not null;size:128" json:"name"`
	Transport string `gorm:"not null;default:ssh" json:"transport"`
	Host      string `json:"host"`
	Port      int    `gorm:"not null;default:0" json:"port"`
	Family    string `gorm:"not null;default:generic" json:"family"`
	Username  string `json:"username"`

	// Serial console addressing. Host and Port are ignored for serial.
	Device   string `json:"device"`
	BaudRate int    `gorm:"not null;default:9600" json:"baud_rate"`

	// Per-device timing overrides in seconds; 0 means the server default.
	ConnectTimeoutSec int `gorm:"not null;default:0" json:"connect_timeout_sec"`
	CommandTimeoutSec int `gorm:"not null;default:0" json:"command_timeout_sec"`
	IdleTimeoutSec    int `gorm:"not null;default:0" json:"idle_timeout_sec"`

	CredentialRef string    `json:"-"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// VaultKey returns the credential store entry name for this profile.
func (p *Profile) VaultKey() string {
	if p.CredentialRef != "" {
		return p.CredentialRef
	}
	return p.ID
}

// SessionProfile converts the stored row into the session layer's profile
// value, turning the second-granularity overrides into durations.
func (p *Profile) SessionProfile() session.Profile {
	return session.Profile{
		ID:             p.ID,
		Name:           p.Name,
		Transport:      transport.Kind(p.Transport),
		Host:           p.Host,
		Port:           p.Port,
		Device:         p.Device,
		BaudRate:       p.BaudRate,
		Family:         p.Family,
		Username:       p.Username,
		ConnectTimeout: time.Duration(p.ConnectTimeoutSec) * time.Second,
		CommandTimeout: time.Duration(p.CommandTimeoutSec) * time.Second,
		IdleTimeout:    time.Duration(p.IdleTimeoutSec) * time.Second,
	}
}

// CatalogCommand is one entry of the built-in command reference. The catalog
// is documentation, not policy: it may list destructive commands, and the
// deny-list still decides at execution time.
type CatalogCommand struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Category    string `gorm:"not null;index;uniqueIndex:idx_cat_cmd;size:64" json:"category"`
	Command     string `gorm:"not null;uniqueIndex:idx_cat_cmd;size:256" json:"command"`
	Description string `json:"description"`
}

// Macro is a named, ordered command sequence. Commands is a JSON array in a
// text column.
type Macro struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:128" json:"name"`
	Description string    `json:"description"`
	Commands    string    `gorm:"type:text;not null;default:'[]'" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CommandList decodes the stored command sequence.
func (m *Macro) CommandList() ([]string, error) {
	if m.Commands == "" {
		return nil, nil
	}
	var cmds []string
	if err := json.Unmarshal([]byte(m.Commands), &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// SetCommands encodes the command sequence for storage.
func (m *Macro) SetCommands(cmds []string) error {
	raw, err := json.Marshal(cmds)
	if err != nil {
		return err
	}
	m.Commands = string(raw)
	return nil
}

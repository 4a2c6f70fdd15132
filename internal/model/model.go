// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Reserved config names; both exist on every usable profile and can only be redefined.
const (
	ConfigInline = "inline" // default directive for inline queries
	ConfigBot    = "bot"    // default directive for direct messages
)

// IsReservedConfig reports whether name is one of the always-present defaults.
func IsReservedConfig(name string) bool {
	return name == ConfigInline || name == ConfigBot
}

// UserProfile holds per-user settings. One per chat-platform user.
type UserProfile struct {
	ID         int64                 // chat platform user id
	Created    time.Time             // zero until first stored; insert-vs-update discriminator
	Enabled    bool                  // operator-enabled profile using the server credential
	Credential string                // user's own provider secret (plaintext in memory only)
	Configs    map[string]LangConfig // named directives
}

// NewUserProfile returns an unsaved profile with both reserved configs set to defaults.
func NewUserProfile(id int64, defaults LangConfig) *UserProfile {
	return &UserProfile{
		ID: id,
		Configs: map[string]LangConfig{
			ConfigInline: defaults.Clone(),
			ConfigBot:    defaults.Clone(),
		},
	}
}

// Usable reports whether the profile can be used for translations.
func (p *UserProfile) Usable() bool {
	return p.Enabled || p.Credential != ""
}

// Clone returns a deep copy; cached profiles are never mutated in place.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Configs = make(map[string]LangConfig, len(p.Configs))
	for name, c := range p.Configs {
		cp.Configs[name] = c.Clone()
	}
	return &cp
}

// TranslationRequest is produced by the directive parser and consumed by the orchestrator.
type TranslationRequest struct {
	UserID     int64
	Text       string // empty for pure configuration commands
	LangConfig LangConfig
	Credential string
}

// TranslationResult is the orchestrator output.
type TranslationResult struct {
	Text       string     // original text
	Translated string     // forward translation
	LangConfig LangConfig // effective direction, always explicit
	Reversed   string     // back-translation, valid when HasReverse
	HasReverse bool
}

// SearchEntry is one completed translation, appended to the search log.
type SearchEntry struct {
	ID           uuid.UUID
	UserID       int64
	Timestamp    time.Time
	SourceText   string
	TargetText   string
	ResolvedFrom string
	ResolvedTo   string
}

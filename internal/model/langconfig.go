package model

import (
	"errors"
	"fmt"
	"strings"
)

// LangConfig is one translation direction.
//
// Explicit mode has From set and no hints. Detect mode has an empty From; Hints lists the candidate
// source languages passed to detection and may be empty.
type LangConfig struct {
	From  string   `json:"from,omitempty"`
	Hints []string `json:"hints,omitempty"`
	To    string   `json:"to"`
}

// Explicit builds an explicit-mode config.
func Explicit(from, to string) LangConfig {
	return LangConfig{From: from, To: to}
}

// Detect builds a detect-mode config.
func Detect(to string, hints ...string) LangConfig {
	return LangConfig{Hints: append([]string{}, hints...), To: to}
}

// IsDetect reports whether the source language must be detected.
func (c LangConfig) IsDetect() bool { return c.From == "" }

// ShortDescription renders "from → to" or "(hint,hint) → to".
func (c LangConfig) ShortDescription() string {
	if c.IsDetect() {
		return "(" + strings.Join(c.Hints, ",") + ") → " + c.To
	}
	return c.From + " → " + c.To
}

// QueryPattern renders the directive prefix that produces this config.
func (c LangConfig) QueryPattern() string {
	if c.IsDetect() {
		// the from slot is ignored in detect mode; repeat the target to keep the grammar
		return "(" + strings.Join(c.Hints, ",") + ") ." + c.To + "." + c.To
	}
	return "." + c.From + "." + c.To
}

// Reverse swaps the direction. Detect-mode configs degrade to explicit mode: the target becomes the
// source and the first hint different from it becomes the target. A detect config without such a
// hint has no reverse and is returned unchanged.
func (c LangConfig) Reverse() LangConfig {
	if !c.IsDetect() {
		return Explicit(c.To, c.From)
	}
	for _, h := range c.Hints {
		if h != c.To {
			return Explicit(c.To, h)
		}
	}
	return c.Clone()
}

// Equal compares configs by value.
func (c LangConfig) Equal(o LangConfig) bool {
	if c.From != o.From || c.To != o.To || len(c.Hints) != len(o.Hints) {
		return false
	}
	for i := range c.Hints {
		if c.Hints[i] != o.Hints[i] {
			return false
		}
	}
	return true
}

// Clone copies the hints slice.
func (c LangConfig) Clone() LangConfig {
	if c.Hints != nil {
		c.Hints = append([]string{}, c.Hints...)
	}
	return c
}

// Validate checks codes and the explicit/detect exclusivity.
func (c LangConfig) Validate() error {
	if c.To == "" {
		return errors.New("target language is required")
	}
	if !IsLangCode(c.To) {
		return fmt.Errorf("bad target language %q", c.To)
	}
	if c.From != "" {
		if len(c.Hints) > 0 {
			return errors.New("both source language and hints set")
		}
		if !IsLangCode(c.From) {
			return fmt.Errorf("bad source language %q", c.From)
		}
	}
	for _, h := range c.Hints {
		if !IsLangCode(h) {
			return fmt.Errorf("bad hint %q", h)
		}
	}
	return nil
}

// IsLangCode reports whether s is a two-letter lowercase code.
func IsLangCode(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'z' && s[1] >= 'a' && s[1] <= 'z'
}

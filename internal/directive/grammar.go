// Package directive turns chat text into translation requests or config mutations.
package directive

import (
	"regexp"
	"strings"

	"github.com/and161185/lanxat/internal/model"
)

// Mode is the context a line of text arrived in. It selects the default config.
type Mode int

const (
	ModeInline Mode = iota // inline query typed in any chat
	ModeBot                // direct message to the bot
)

// DefaultConfig names the reserved config used for plain text.
func (m Mode) DefaultConfig() string {
	if m == ModeInline {
		return model.ConfigInline
	}
	return model.ConfigBot
}

func (m Mode) String() string {
	if m == ModeInline {
		return "inline"
	}
	return "bot"
}

// Kind tells translation directives from config mutations.
type Kind int

const (
	KindTranslate Kind = iota
	KindMutation
)

// Directive is the grammar-level reading of one input line.
//
// For KindTranslate either Config holds an inline direction, or Name references a stored config
// (the mode default for plain text). For KindMutation Name is the target config and a nil Config
// means deletion.
type Directive struct {
	Kind   Kind
	Name   string
	Config *model.LangConfig
	Text   string
}

// langs is "[(h1,h2) ].xx.yy": 1 = hints group incl. parens, 2 = hint list, 3 = from, 4 = to.
const langs = `(?:(\(\s*((?:[a-z]{2}\s*,\s*)*[a-z]{2})?\s*\))\s+)?\.([a-z]{2})\.([a-z]{2})`

var (
	inlineRe   = regexp.MustCompile(`^` + langs + `\s+((?s:.+))$`)
	mutationRe = regexp.MustCompile(`^\.(\w+)\s*=(?:\s*` + langs + `)?\s*$`)
	namedRe    = regexp.MustCompile(`^\.(\w+)\s+((?s:.+))$`)
)

type rule struct {
	re    *regexp.Regexp
	build func(m []string, mode Mode) Directive
}

// rules are tried in order, first match wins. Mutation precedes named reference, otherwise
// ".name = .xx.yy" would be read as config "name" with text "= .xx.yy".
var rules = []rule{
	{inlineRe, func(m []string, _ Mode) Directive {
		c := langConfig(m[1:5])
		return Directive{Kind: KindTranslate, Config: &c, Text: m[5]}
	}},
	{mutationRe, func(m []string, _ Mode) Directive {
		d := Directive{Kind: KindMutation, Name: m[1]}
		if m[4] != "" {
			c := langConfig(m[2:6])
			d.Config = &c
		}
		return d
	}},
	{namedRe, func(m []string, _ Mode) Directive {
		return Directive{Kind: KindTranslate, Name: m[1], Text: m[2]}
	}},
}

// langConfig builds a config from the four langs submatches.
func langConfig(g []string) model.LangConfig {
	if g[0] == "" {
		return model.Explicit(g[2], g[3])
	}
	hints := []string{}
	if g[1] != "" {
		for _, h := range strings.Split(g[1], ",") {
			hints = append(hints, strings.TrimSpace(h))
		}
	}
	return model.Detect(g[3], hints...)
}

// Parse reads input with the fixed grammar. It never fails: text matching no directive is plain
// text for the mode's default config.
func Parse(input string, mode Mode) Directive {
	in := strings.TrimSpace(input)
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(in); m != nil {
			return r.build(m, mode)
		}
	}
	return Directive{Kind: KindTranslate, Name: mode.DefaultConfig(), Text: in}
}

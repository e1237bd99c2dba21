package listsync

import (
	"slices"
	"strings"
)

// Gate answers whether the current session holds a capability token such as "manage_notes.edit".
type Gate interface {
	Has(token string) bool
}

// GateFunc adapts a function to [Gate].
type GateFunc func(token string) bool

func (f GateFunc) Has(token string) bool {
	return f(token)
}

// AllowAll grants every capability.
var AllowAll Gate = GateFunc(func(string) bool { return true })

// DenyAll grants nothing.
var DenyAll Gate = GateFunc(func(string) bool { return false })

// StaticGate is a fixed set of tokens.
//
// A token "manage_notes.*" grants every notes action and "*" grants everything.
type StaticGate struct {
	tokens map[string]struct{}
}

// NewStaticGate creates a gate holding tokens.
func NewStaticGate(tokens ...string) StaticGate {
	g := StaticGate{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			g.tokens[t] = struct{}{}
		}
	}
	return g
}

func (g StaticGate) Has(token string) bool {
	if _, ok := g.tokens[token]; ok {
		return true
	}
	if _, ok := g.tokens["*"]; ok {
		return true
	}
	if prefix, _, ok := strings.Cut(token, "."); ok {
		_, ok = g.tokens[prefix+".*"]
		return ok
	}
	return false
}

// Tokens returns the granted tokens in sorted order.
func (g StaticGate) Tokens() []string {
	out := make([]string, 0, len(g.tokens))
	for t := range g.tokens {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

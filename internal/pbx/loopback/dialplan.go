package loopback

import (
	"fmt"
	"strings"
	"sync"

	"sccpd/internal/pbx"
)

// Kind is what an extension does when dialed.
type Kind int

const (
	// KindLine rings an SCCP line.
	KindLine Kind = iota
	// KindEcho answers and plays the caller's audio back.
	KindEcho
	// KindBusy reports busy.
	KindBusy
	// KindCongestion reports congestion.
	KindCongestion
)

func (k Kind) String() string {
	switch k {
	case KindEcho:
		return "echo"
	case KindBusy:
		return "busy"
	case KindCongestion:
		return "congestion"
	}
	return "line"
}

// ParseKind reads line, echo, busy or congestion.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "line":
		return KindLine, nil
	case "echo":
		return KindEcho, nil
	case "busy":
		return KindBusy, nil
	case "congestion":
		return KindCongestion, nil
	}
	return KindLine, fmt.Errorf("unknown extension kind %q", s)
}

// Route is the target of an extension.
type Route struct {
	Kind Kind
	Line string
}

type extension struct {
	exten string
	route Route
	// line is set on the extensions SetLines generates.
	line bool
}

// Dialplan maps extensions to routes, per context. Extensions starting
// with '_' are patterns: X is any digit, Z 1-9, N 2-9, '.' one or more
// characters and '!' zero or more.
type Dialplan struct {
	mu       sync.RWMutex
	contexts map[string][]extension
}

// NewDialplan creates an empty Dialplan.
func NewDialplan() *Dialplan {
	return &Dialplan{contexts: make(map[string][]extension)}
}

// Add appends an extension to a context. Later entries never shadow an
// earlier literal match.
func (d *Dialplan) Add(context, exten string, r Route) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.contexts[context]
	for i, e := range list {
		if e.exten == exten {
			list[i] = extension{exten: exten, route: r}
			return
		}
	}
	d.contexts[context] = append(list, extension{exten: exten, route: r})
}

// SetLines replaces the generated line routes with one extension per
// line, named after the line, in the line's context. Routes added with
// Add are kept and win over a line of the same name.
func (d *Dialplan) SetLines(lines map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ctx, list := range d.contexts {
		kept := list[:0]
		for _, e := range list {
			if !e.line {
				kept = append(kept, e)
			}
		}
		d.contexts[ctx] = kept
	}
	for name, ctx := range lines {
		if d.hasLocked(ctx, name) {
			continue
		}
		d.contexts[ctx] = append(d.contexts[ctx], extension{exten: name, route: Route{Kind: KindLine, Line: name}, line: true})
	}
}

func (d *Dialplan) hasLocked(context, exten string) bool {
	for _, e := range d.contexts[context] {
		if e.exten == exten {
			return true
		}
	}
	return false
}

// Match reports whether exten names an extension in context and whether
// more digits could still match one.
func (d *Dialplan) Match(context, exten string) pbx.Match {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var m pbx.Match
	for _, e := range d.contexts[context] {
		exact, more := matchExten(e.exten, exten)
		m.Exists = m.Exists || exact
		m.MoreDigits = m.MoreDigits || more
	}
	return m
}

// Resolve returns the route for exten. Literal extensions win over
// patterns.
func (d *Dialplan) Resolve(context, exten string) (Route, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var pattern *Route
	for i, e := range d.contexts[context] {
		if e.exten == exten {
			return e.route, true
		}
		if pattern == nil && strings.HasPrefix(e.exten, "_") {
			if exact, _ := matchExten(e.exten, exten); exact {
				pattern = &d.contexts[context][i].route
			}
		}
	}
	if pattern != nil {
		return *pattern, true
	}
	return Route{}, false
}

func matchExten(exten, s string) (exact, more bool) {
	if !strings.HasPrefix(exten, "_") {
		return exten == s, len(exten) > len(s) && strings.HasPrefix(exten, s)
	}
	p, j := exten[1:], 0
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '.':
			return j < len(s), true
		case '!':
			return true, true
		}
		if j == len(s) {
			return false, true
		}
		if !matchChar(p[i], s[j]) {
			return false, false
		}
		j++
	}
	return j == len(s), false
}

func matchChar(p, c byte) bool {
	switch p {
	case 'X', 'x':
		return c >= '0' && c <= '9'
	case 'Z', 'z':
		return c >= '1' && c <= '9'
	case 'N', 'n':
		return c >= '2' && c <= '9'
	}
	return p == c
}

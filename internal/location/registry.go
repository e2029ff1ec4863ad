// Package location resolves raw scanned QR payloads to known passport locations.
package location

import (
	"fmt"
	"strings"
	"unicode"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/model"
)

// Entry pairs a location with the payload tokens that identify it.
// A payload matches when it contains any of the tokens.
type Entry struct {
	Tokens   []string
	Location model.LocationInfo
}

// PrimaryToken returns the token used when generating a payload for this entry.
func (e Entry) PrimaryToken() string {
	if len(e.Tokens) == 0 {
		return ""
	}
	return e.Tokens[0]
}

// Registry is an ordered, immutable table of location matchers.
// Entries are evaluated in declaration order and the first match wins.
// It is safe for concurrent use.
type Registry struct {
	entries []Entry
	// normalized tokens, parallel to entries
	tokens [][]string
}

// New creates a registry from the given entries.
// Entries without tokens or with a duplicate (emirate, location) pair are rejected.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		tokens:  make([][]string, 0, len(entries)),
	}

	for _, e := range entries {
		norm := make([]string, 0, len(e.Tokens))
		for _, tok := range e.Tokens {
			if t := normalize(tok); t != "" {
				norm = append(norm, t)
			}
		}
		if len(norm) == 0 {
			return nil, fmt.Errorf("location %q has no matchable tokens", e.Location.Name)
		}
		if _, ok := r.Lookup(e.Location.EmirateID, e.Location.ID); ok {
			return nil, fmt.Errorf("duplicate location %s/%d", e.Location.EmirateID, e.Location.ID)
		}
		if e.Location.PointValue < 0 {
			return nil, fmt.Errorf("location %q has negative point value", e.Location.Name)
		}

		r.entries = append(r.entries, Entry{
			Tokens:   append([]string(nil), e.Tokens...),
			Location: e.Location,
		})
		r.tokens = append(r.tokens, norm)
	}

	return r, nil
}

// MustNew is like New but panics on an invalid table.
func MustNew(entries ...Entry) *Registry {
	r, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the registry of locations with printed QR placards.
// The last Dubai Mall token is how its placard text arrives when the
// scanner decodes UTF-8 bytes as Latin-1.
func Default() *Registry {
	return MustNew(
		Entry{
			Tokens: []string{
				"dubai-mall",
				"Dubai Mall",
				"Dubai â€“ Home to over 1,200 retail outlets",
			},
			Location: catalog.DubaiMall,
		},
	)
}

// Resolve maps a raw scanned payload to a location.
// The second return value is false when the payload is not recognized,
// which is a valid outcome rather than an error.
func (r *Registry) Resolve(raw string) (model.LocationInfo, bool) {
	payload := normalize(raw)
	if payload == "" {
		return model.LocationInfo{}, false
	}

	for i, toks := range r.tokens {
		for _, tok := range toks {
			if strings.Contains(payload, tok) {
				return r.entries[i].Location, true
			}
		}
	}
	return model.LocationInfo{}, false
}

// Lookup returns the location registered for an emirate/location pair.
func (r *Registry) Lookup(emirateID string, locationID int) (model.LocationInfo, bool) {
	for _, e := range r.entries {
		if e.Location.SameLocation(emirateID, locationID) {
			return e.Location, true
		}
	}
	return model.LocationInfo{}, false
}

// Entries returns a copy of the table in declaration order.
// Token slices are copied too, so callers cannot alter the registry.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = Entry{
			Tokens:   append([]string(nil), e.Tokens...),
			Location: e.Location,
		}
	}
	return out
}

// Count returns the number of registered locations.
func (r *Registry) Count() int {
	return len(r.entries)
}

// normalize drops control and zero-width characters that scanners leave in
// decoded text, collapses whitespace and lower-cases the result.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

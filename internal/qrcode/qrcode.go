// Package qrcode renders printable QR placards for registry locations.
// Each placard encodes a deep link whose payload resolves back to its own
// location through the registry.
package qrcode

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"

	"emirates-passport/internal/location"
)

// StartParam is the deep-link query parameter carrying the location token.
const StartParam = "start"

// ErrNoToken is returned for a registry entry without a usable token.
var ErrNoToken = errors.New("location entry has no token")

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

// Placard is one rendered QR code.
type Placard struct {
	Filename string
	Payload  string
	PNG      []byte
}

// Generator renders placards.
type Generator struct {
	baseURL *url.URL
	size    int
	level   qrcode.RecoveryLevel
}

// NewGenerator creates a placard generator.
// recoveryLevel is one of L, M, Q or H; anything else falls back to M.
func NewGenerator(baseURL string, size int, recoveryLevel string) (*Generator, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	var level qrcode.RecoveryLevel
	switch strings.ToUpper(recoveryLevel) {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	return &Generator{baseURL: u, size: size, level: level}, nil
}

// Payload returns the deep link encoded on the entry's placard.
func (g *Generator) Payload(entry location.Entry) (string, error) {
	token := entry.PrimaryToken()
	if strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}

	u := *g.baseURL
	q := u.Query()
	q.Set(StartParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Placard renders the PNG placard for one entry.
func (g *Generator) Placard(entry location.Entry) (*Placard, error) {
	payload, err := g.Payload(entry)
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(payload, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := code.PNG(g.size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return &Placard{
		Filename: Filename(entry),
		Payload:  payload,
		PNG:      png,
	}, nil
}

// WriteAll renders a placard for every registry entry into dir and returns
// the written file paths in registry order.
func (g *Generator) WriteAll(dir string, registry *location.Registry) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	entries := registry.Entries()
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		p, err := g.Placard(entry)
		if err != nil {
			return paths, fmt.Errorf("failed to render placard for %q: %w", entry.Location.Name, err)
		}
		path := filepath.Join(dir, p.Filename)
		if err := os.WriteFile(path, p.PNG, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write placard: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Filename returns the placard file name for an entry, e.g. "dubai-2-dubai-mall.png".
func Filename(entry location.Entry) string {
	slug := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(entry.Location.Name), "-"), "-")
	return fmt.Sprintf("%s-%d-%s.png", entry.Location.EmirateID, entry.Location.ID, slug)
}

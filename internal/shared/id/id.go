// Package id generates the identifiers handed out for terminal sessions.
//
// IDs are ULIDs with a type prefix, so they sort by creation time and read
// clearly in logs (term_01J...).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session
type SessionID string

// SessionPrefix marks terminal session IDs
const SessionPrefix = "term"

// Source hands out session IDs. Components take a Source so tests can
// supply deterministic IDs.
type Source interface {
	NewSessionID() SessionID
}

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy io.Reader
	now     func() time.Time
	mu      sync.Mutex
}

// NewGenerator creates a generator with monotonic, cryptographically
// secure entropy.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
// and clock.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID
func (g *Generator) NewSessionID() SessionID {
	return SessionID(g.GenerateWithPrefix(SessionPrefix))
}

// ParseSessionID validates s and returns its ULID.
func ParseSessionID(s string) (ulid.ULID, error) {
	raw, ok := strings.CutPrefix(s, SessionPrefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("invalid session id %q: missing %s_ prefix", s, SessionPrefix)
	}
	u, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return u, nil
}

// Time returns the creation time encoded in the ID, or the zero time if
// the ID is malformed.
func (s SessionID) Time() time.Time {
	u, err := ParseSessionID(string(s))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}

func (s SessionID) String() string {
	return string(s)
}

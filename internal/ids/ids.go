// Package ids generates and validates the two identifier shapes used for evidence:
// random v4 UUIDs for persisted objects and short timestamp ids for client-only ones.
package ids

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MemoryPrefix marks ids of files that only exist in memory (not yet uploaded)
const MemoryPrefix = "memory"

var (
	uuidV4Pattern    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	ephemeralPattern = regexp.MustCompile(`^(\w+-)?(\d+)-([a-z0-9]+)$`)
)

// Generator produces identifiers. Random is the secure source used for v4 UUIDs;
// when it is nil crypto/rand is used. Now defaults to time.Now.
type Generator struct {
	Random io.Reader
	Now    func() time.Time
}

var defaultGenerator = &Generator{}

// NewUniqueID returns a random version-4 UUID
func NewUniqueID() string {
	return defaultGenerator.NewUniqueID()
}

// NewEphemeralID returns {prefix-}{epoch-millis}-{random base36}
func NewEphemeralID(prefix string) string {
	return defaultGenerator.NewEphemeralID(prefix)
}

// NewMemoryFileID returns an ephemeral id for a file held in memory before upload
func NewMemoryFileID() string {
	return NewEphemeralID(MemoryPrefix)
}

// NewUniqueID never fails: if the secure source is unavailable it falls back to
// a pseudo-random template fill that keeps the version and variant bits.
func (g *Generator) NewUniqueID() string {
	id, err := g.secureUUID()
	if err == nil {
		return id
	}
	slog.Warn("secure random source unavailable, using fallback uuid", "error", err)
	return fallbackUUID()
}

func (g *Generator) secureUUID() (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("random source panicked: %v", r)
		}
	}()

	src := g.Random
	if src == nil {
		src = rand.Reader
	}

	u, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func fallbackUUID() string {
	const template = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"
	const hex = "0123456789abcdef"

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case 'x':
			b.WriteByte(hex[mrand.IntN(16)])
		case 'y':
			b.WriteByte(hex[mrand.IntN(4)|0x8])
		default:
			b.WriteByte(template[i])
		}
	}
	return b.String()
}

func (g *Generator) NewEphemeralID(prefix string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	ts := strconv.FormatInt(now().UnixMilli(), 10)
	suffix := randomBase36(5 + mrand.IntN(5))

	if prefix == "" {
		return ts + "-" + suffix
	}
	return prefix + "-" + ts + "-" + suffix
}

func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[mrand.IntN(len(alphabet))]
	}
	return string(b)
}

// IsValidID reports whether v is a string in either identifier shape.
// Non-string values are rejected.
func IsValidID(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	return uuidV4Pattern.MatchString(s) || ephemeralPattern.MatchString(s)
}

// IsEphemeral reports whether id has the timestamp shape rather than a UUID
func IsEphemeral(id string) bool {
	return !uuidV4Pattern.MatchString(id) && ephemeralPattern.MatchString(id)
}

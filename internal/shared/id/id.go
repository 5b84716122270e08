// Package id provides centralized ID generation for ipckit.
//
// IDs are ULIDs with type-specific prefixes (strm_*, xchg_*) so that a
// stream handle can never be confused with a request exchange in logs or
// registry keys. ULIDs are lexicographically sortable, which keeps registry
// snapshots in open order for free.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// StreamID identifies one open managed pipe stream.
type StreamID string

// ExchangeID identifies one request/response exchange over a rendezvous channel.
type ExchangeID string

const (
	StreamPrefix   = "strm"
	ExchangePrefix = "xchg"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewStreamID generates a new stream ID.
func NewStreamID() StreamID {
	return StreamID(Default().GenerateWithPrefix(StreamPrefix))
}

// NewExchangeID generates a new exchange ID.
func NewExchangeID() ExchangeID {
	return ExchangeID(Default().GenerateWithPrefix(ExchangePrefix))
}

func (id StreamID) String() string   { return string(id) }
func (id ExchangeID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID, ignoring any prefix.
func IsValid(s string) bool {
	if i := len(s) - ulid.EncodedSize; i > 0 {
		s = s[i:]
	}
	_, err := ulid.Parse(s)
	return err == nil
}

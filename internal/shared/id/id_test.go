package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStreamID(t *testing.T) {
	sid := NewStreamID()

	assert.True(t, strings.HasPrefix(sid.String(), StreamPrefix+"_"))
	assert.True(t, IsValid(sid.String()))
}

func TestNewExchangeID(t *testing.T) {
	xid := NewExchangeID()

	assert.True(t, strings.HasPrefix(xid.String(), ExchangePrefix+"_"))
	assert.True(t, IsValid(xid.String()))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[StreamID]bool)
	for i := 0; i < 1000; i++ {
		sid := NewStreamID()
		assert.False(t, seen[sid], "duplicate stream ID %s", sid)
		seen[sid] = true
	}
}

func TestGeneratorWithEntropy(t *testing.T) {
	g := NewGeneratorWithEntropy(strings.NewReader("abcdefghijklmnopqrstuvwxyz012345"))

	// Each ULID consumes the next 10 entropy bytes from the stream.
	first := g.Generate()
	second := g.Generate()
	assert.NotEqual(t, first.String(), second.String())
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid(""))
	assert.True(t, IsValid(NewExchangeID().String()))
}

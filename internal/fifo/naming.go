//go:build unix

package fifo

import (
	"os"
	"strconv"
)

// Namer derives the per-client channel path from a client identity. It must
// be a pure function: the server and the client each compute the same path
// independently.
type Namer func(clientID string) string

// DefaultNamer places per-client channels beside the well-known channel,
// suffixed with the client identity.
func DefaultNamer(wellKnownPath string) Namer {
	return func(clientID string) string {
		return wellKnownPath + "." + clientID
	}
}

// DefaultClientID identifies a client by its process id.
func DefaultClientID() string {
	return strconv.Itoa(os.Getpid())
}

//go:build unix

package fifo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/ipckit/internal/infrastructure/logging"
)

// Client performs one-shot request/response exchanges against a rendezvous
// server. The zero identity is the client's process id.
type Client struct {
	wellKnown string
	clientID  string
	namer     Namer
	mode      os.FileMode
	log       *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientID overrides the client identity used to name the response
// channel. It must be unique among concurrent clients of one server.
func WithClientID(clientID string) ClientOption {
	return func(c *Client) { c.clientID = clientID }
}

// WithClientNamer overrides per-client channel naming; it must match the
// server's Namer.
func WithClientNamer(n Namer) ClientOption {
	return func(c *Client) { c.namer = n }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithClientMode sets the creation mode for the client's own channel.
func WithClientMode(mode os.FileMode) ClientOption {
	return func(c *Client) { c.mode = mode }
}

// NewClient creates a client of the server listening on wellKnownPath.
func NewClient(wellKnownPath string, opts ...ClientOption) *Client {
	c := &Client{
		wellKnown: wellKnownPath,
		clientID:  DefaultClientID(),
		mode:      0o622,
		log:       logging.NewNop(),
	}
	c.namer = DefaultNamer(wellKnownPath)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientID returns the identity this client embeds in its requests.
func (c *Client) ClientID() string { return c.clientID }

// Request writes one framed request to the well-known channel as a single
// atomic write, then reads exactly one response from the client's own
// channel. The own channel is created before the request is sent and removed
// when the exchange finishes, successfully or not. Oversized payloads are
// rejected before anything touches the filesystem.
func (c *Client) Request(ctx context.Context, payload []byte) ([]byte, error) {
	frame, err := encodeRequest(c.clientID, payload)
	if err != nil {
		return nil, err
	}

	own := c.namer(c.clientID)
	if err := ensureFIFO(own, c.mode); err != nil {
		return nil, err
	}
	defer os.Remove(own)

	if err := c.send(frame); err != nil {
		return nil, err
	}
	return c.receive(ctx, own)
}

func (c *Client) send(frame []byte) error {
	// Non-blocking write-only open: the server holds a read end whenever it
	// is listening, so ENXIO means no server.
	wk, err := os.OpenFile(c.wellKnown, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return fmt.Errorf("no server on %s: %w", c.wellKnown, ErrBrokenPeer)
		}
		return err
	}
	defer wk.Close()

	if _, err := wk.Write(frame); err != nil {
		if errors.Is(err, unix.EPIPE) {
			return fmt.Errorf("server went away: %w", ErrBrokenPeer)
		}
		return err
	}
	return nil
}

// receive opens the client's own channel and reads one response. The
// blocking open parks in a goroutine so that an abandoned request honors
// ctx; the server tolerates the resulting broken peer.
func (c *Client) receive(ctx context.Context, own string) ([]byte, error) {
	type opened struct {
		f   *os.File
		err error
	}
	ch := make(chan opened, 1)
	go func() {
		f, err := os.OpenFile(own, os.O_RDONLY, 0)
		ch <- opened{f: f, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if o := <-ch; o.f != nil {
				o.f.Close()
			}
		}()
		return nil, ctx.Err()
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		defer o.f.Close()
		return readResponse(bufio.NewReaderSize(o.f, AtomicWriteLimit))
	}
}

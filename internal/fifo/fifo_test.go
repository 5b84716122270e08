//go:build unix

package fifo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// startServer runs a rendezvous server in a temp namespace and tears it
// down with the test.
func startServer(t *testing.T, handler Handler, opts ...ServerOption) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rendezvous.fifo")
	opts = append([]ServerOption{
		WithWorkers(8),
		WithOpenRetry(20, 10*time.Millisecond),
	}, opts...)
	srv := NewServer(path, handler, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Listen(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	waitForServer(t, path)
	return srv
}

// waitForServer polls until the well-known channel has a reader.
func waitForServer(t *testing.T, path string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			f.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never started listening")
}

func upperHandler(_ context.Context, _ string, payload []byte) []byte {
	return bytes.ToUpper(payload)
}

func echoHandler(_ context.Context, _ string, payload []byte) []byte {
	return payload
}

func TestRoundTrip(t *testing.T) {
	srv := startServer(t, upperHandler)

	client := NewClient(srv.Path(), WithClientID("alice"))
	resp, err := client.Request(context.Background(), []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO WORLD"), resp)

	// The per-client channel is gone once the exchange completes.
	assert.NoFileExists(t, srv.Path()+".alice")
}

func TestSequentialRequests(t *testing.T) {
	srv := startServer(t, upperHandler)
	client := NewClient(srv.Path(), WithClientID("bob"))

	for i := 0; i < 5; i++ {
		payload := fmt.Sprintf("request %d", i)
		resp, err := client.Request(context.Background(), []byte(payload))
		require.NoError(t, err)
		assert.Equal(t, bytes.ToUpper([]byte(payload)), resp)
	}
}

func TestConcurrentClientsNoCrossDelivery(t *testing.T) {
	srv := startServer(t, echoHandler)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientID := fmt.Sprintf("c%02d", i)
			token := fmt.Sprintf("token-%02d-%d", i, time.Now().UnixNano())

			client := NewClient(srv.Path(), WithClientID(clientID))
			resp, err := client.Request(context.Background(), []byte(token))
			if err != nil {
				errs <- fmt.Errorf("client %s: %w", clientID, err)
				return
			}
			if string(resp) != token {
				errs <- fmt.Errorf("client %s: got %q, want %q", clientID, resp, token)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestOversizedRequestRejectedBeforeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous.fifo")
	client := NewClient(path, WithClientID("big"))

	payload := bytes.Repeat([]byte("x"), MaxPayload("big")+1)
	_, err := client.Request(context.Background(), payload)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	// Rejected before any filesystem activity.
	assert.NoFileExists(t, path+".big")
}

func TestRequestWithoutServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous.fifo")
	require.NoError(t, ensureFIFO(path, 0o622))

	client := NewClient(path, WithClientID("lonely"))
	_, err := client.Request(context.Background(), []byte("anyone?"))
	assert.ErrorIs(t, err, ErrBrokenPeer)
	assert.NoFileExists(t, path+".lonely")
}

func TestServerSurvivesVanishedClient(t *testing.T) {
	srv := startServer(t, upperHandler, WithOpenRetry(2, 10*time.Millisecond))

	// A client that sends a request and dies before ever opening its
	// response channel: write the frame directly and walk away.
	frame, err := encodeRequest("ghost", []byte("boo"))
	require.NoError(t, err)

	wk, err := os.OpenFile(srv.Path(), os.O_WRONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)
	_, err = wk.Write(frame)
	require.NoError(t, err)
	wk.Close()

	// The server stays listening and services the next request.
	client := NewClient(srv.Path(), WithClientID("alive"))
	resp, err := client.Request(context.Background(), []byte("still here"))
	require.NoError(t, err)
	assert.Equal(t, []byte("STILL HERE"), resp)

	// The ghost's channel was cleaned up after the failed delivery.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(srv.Path() + ".ghost"); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.NoFileExists(t, srv.Path()+".ghost")
}

func TestGarbagePrecedingFrameStillDelivered(t *testing.T) {
	srv := startServer(t, upperHandler)

	frame, err := encodeRequest("patient", []byte("after the noise"))
	require.NoError(t, err)

	respPath := srv.Path() + ".patient"
	require.NoError(t, ensureFIFO(respPath, 0o622))
	defer os.Remove(respPath)

	// One atomic write lands the garbage and the good frame in the
	// listener's buffer together; recovery must not consume the frame.
	junk := bytes.Repeat([]byte{0xFF}, 7)
	wk, err := os.OpenFile(srv.Path(), os.O_WRONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)
	_, err = wk.Write(append(junk, frame...))
	require.NoError(t, err)
	wk.Close()

	r, err := os.OpenFile(respPath, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer r.Close()

	resp, err := readResponse(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("AFTER THE NOISE"), resp)
}

func TestAbandonedRequestHonorsContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	srv := startServer(t, func(ctx context.Context, _ string, payload []byte) []byte {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return payload
	}, WithOpenRetry(2, 10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient(srv.Path(), WithClientID("impatient"))
	_, err := client.Request(ctx, []byte("never mind"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMaxSizedRoundTrip(t *testing.T) {
	srv := startServer(t, echoHandler)

	clientID := "max"
	payload := bytes.Repeat([]byte("m"), MaxPayload(clientID))

	client := NewClient(srv.Path(), WithClientID(clientID))
	resp, err := client.Request(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, payload, resp)
}

func TestDefaultClientIDIsPid(t *testing.T) {
	srv := startServer(t, echoHandler)

	client := NewClient(srv.Path())
	assert.Equal(t, fmt.Sprintf("%d", os.Getpid()), client.ClientID())

	resp, err := client.Request(context.Background(), []byte("pid client"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pid client"), resp)
}

func TestSweepStale(t *testing.T) {
	srv := startServer(t, echoHandler)

	stale := srv.Path() + ".stale"
	require.NoError(t, ensureFIFO(stale, 0o622))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := srv.Path() + ".fresh"
	require.NoError(t, ensureFIFO(fresh, 0o622))
	defer os.Remove(fresh)

	removed, err := srv.SweepStale(10 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestEnsureFIFOIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan.fifo")

	require.NoError(t, ensureFIFO(path, 0o622))
	require.NoError(t, ensureFIFO(path, 0o622))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeNamedPipe)
}

func TestEnsureFIFORejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-fifo")
	require.NoError(t, os.WriteFile(path, []byte("regular"), 0o644))

	err := ensureFIFO(path, 0o622)
	require.Error(t, err)
}

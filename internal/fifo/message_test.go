//go:build unix

package fifo

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFrameRoundTrip(t *testing.T) {
	frame, err := encodeRequest("client-42", []byte("hello"))
	require.NoError(t, err)

	req, err := readRequest(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, "client-42", req.ClientID)
	assert.Equal(t, []byte("hello"), req.Payload)
}

func TestRequestAtLimit(t *testing.T) {
	clientID := "c1"
	payload := bytes.Repeat([]byte("x"), MaxPayload(clientID))

	frame, err := encodeRequest(clientID, payload)
	require.NoError(t, err)
	assert.Len(t, frame, AtomicWriteLimit)

	req, err := readRequest(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, payload, req.Payload)
}

func TestRequestOverLimit(t *testing.T) {
	clientID := "c1"
	payload := bytes.Repeat([]byte("x"), MaxPayload(clientID)+1)

	_, err := encodeRequest(clientID, payload)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestBadClientID(t *testing.T) {
	for _, clientID := range []string{"", strings.Repeat("a", 256), "evil/../id"} {
		_, err := encodeRequest(clientID, []byte("p"))
		assert.ErrorIs(t, err, ErrBadClientID, "client id %q", clientID)
	}
}

func TestReadRequestBadMagic(t *testing.T) {
	frame, err := encodeRequest("c1", []byte("p"))
	require.NoError(t, err)
	frame[0] = 0xFF

	_, err = readRequest(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestReadRequestTruncated(t *testing.T) {
	frame, err := encodeRequest("c1", []byte("payload"))
	require.NoError(t, err)

	_, err = readRequest(bytes.NewReader(frame[:len(frame)-2]))
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestResyncStopsAtNextFrame(t *testing.T) {
	frame, err := encodeRequest("c1", []byte("survivor"))
	require.NoError(t, err)

	// Garbage that even contains a stray magic byte, then a good frame.
	junk := []byte{0xFF, frameMagic, 0xFF, frameMagic, 0xFF, frameMagic}
	br := bufio.NewReader(bytes.NewReader(append(junk, frame...)))

	_, err = readRequest(br)
	require.ErrorIs(t, err, ErrBadFrame)

	resync(br)
	req, err := readRequest(br)
	require.NoError(t, err)
	assert.Equal(t, "c1", req.ClientID)
	assert.Equal(t, []byte("survivor"), req.Payload)
}

func TestResyncDrainsPureGarbage(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader(bytes.Repeat([]byte{0xFF}, 32)))

	_, err := readRequest(br)
	require.ErrorIs(t, err, ErrBadFrame)

	resync(br)
	assert.Zero(t, br.Buffered())
}

func TestResponseFrameRoundTrip(t *testing.T) {
	frame, err := encodeResponse([]byte("result"))
	require.NoError(t, err)

	payload, err := readResponse(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), payload)
}

func TestEmptyResponse(t *testing.T) {
	frame, err := encodeResponse(nil)
	require.NoError(t, err)

	payload, err := readResponse(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestResponseOverLimit(t *testing.T) {
	_, err := encodeResponse(bytes.Repeat([]byte("x"), MaxResponse+1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

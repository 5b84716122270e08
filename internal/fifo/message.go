//go:build unix

package fifo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// AtomicWriteLimit is the largest message guaranteed not to interleave with
// concurrent writers on a named pipe (POSIX PIPE_BUF; 4096 on Linux).
const AtomicWriteLimit = 4096

const (
	frameMagic   = 0xA7
	frameVersion = 1

	// magic, version, id length, payload length (big-endian u16)
	requestHeaderSize  = 5
	responseHeaderSize = 2
)

// MaxResponse is the largest response payload a handler may return.
const MaxResponse = AtomicWriteLimit - responseHeaderSize

var (
	// ErrMessageTooLarge marks a message that exceeds the atomic write
	// limit; it is rejected before any write is attempted.
	ErrMessageTooLarge = errors.New("message exceeds atomic write limit")

	// ErrBadFrame marks a request that does not parse as one protocol frame.
	ErrBadFrame = errors.New("malformed frame")

	// ErrBadClientID marks a client identity unusable as a channel name.
	ErrBadClientID = errors.New("client id must be 1-255 bytes with no path separator")
)

// MaxPayload returns the largest request payload the given client identity
// leaves room for.
func MaxPayload(clientID string) int {
	return AtomicWriteLimit - requestHeaderSize - len(clientID)
}

// Request is one decoded inbound message.
type Request struct {
	ClientID string
	Payload  []byte
}

// encodeRequest frames (clientID, payload) for a single atomic write.
func encodeRequest(clientID string, payload []byte) ([]byte, error) {
	if len(clientID) == 0 || len(clientID) > 255 || strings.ContainsRune(clientID, '/') {
		return nil, ErrBadClientID
	}
	total := requestHeaderSize + len(clientID) + len(payload)
	if total > AtomicWriteLimit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, total, AtomicWriteLimit)
	}

	buf := make([]byte, 0, total)
	buf = append(buf, frameMagic, frameVersion, byte(len(clientID)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, clientID...)
	buf = append(buf, payload...)
	return buf, nil
}

// readRequest decodes exactly one frame from the channel byte stream.
func readRequest(r io.Reader) (Request, error) {
	var hdr [requestHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Request{}, err
	}
	if hdr[0] != frameMagic || hdr[1] != frameVersion {
		return Request{}, fmt.Errorf("%w: bad magic %#x version %d", ErrBadFrame, hdr[0], hdr[1])
	}

	idLen := int(hdr[2])
	payloadLen := int(binary.BigEndian.Uint16(hdr[3:5]))
	if idLen == 0 || requestHeaderSize+idLen+payloadLen > AtomicWriteLimit {
		return Request{}, fmt.Errorf("%w: impossible lengths id=%d payload=%d", ErrBadFrame, idLen, payloadLen)
	}

	body := make([]byte, idLen+payloadLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Request{}, fmt.Errorf("%w: truncated body: %v", ErrBadFrame, err)
	}
	return Request{ClientID: string(body[:idLen]), Payload: body[idLen:]}, nil
}

// resync advances past garbage to the next frame header boundary, one byte
// at a time. Atomic writes mean a well-formed frame may sit in the buffer
// directly behind a misbehaving writer's bytes; discarding wholesale would
// destroy it. Only buffered bytes are examined, so resync never blocks.
func resync(br *bufio.Reader) {
	for br.Buffered() > 0 {
		b, _ := br.Peek(1)
		if b[0] == frameMagic {
			if br.Buffered() < 2 {
				return
			}
			hdr, _ := br.Peek(2)
			if hdr[1] == frameVersion {
				return
			}
		}
		br.Discard(1)
	}
}

// encodeResponse frames a response payload for a single atomic write.
func encodeResponse(payload []byte) ([]byte, error) {
	if responseHeaderSize+len(payload) > AtomicWriteLimit {
		return nil, fmt.Errorf("%w: response %d > %d bytes", ErrMessageTooLarge, len(payload), MaxResponse)
	}
	buf := make([]byte, 0, responseHeaderSize+len(payload))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	return append(buf, payload...), nil
}

// readResponse reads exactly one response payload.
func readResponse(r io.Reader) ([]byte, error) {
	var hdr [responseHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: truncated response: %v", ErrBadFrame, err)
	}
	return payload, nil
}

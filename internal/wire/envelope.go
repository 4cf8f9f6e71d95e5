// Package wire implements the length-prefixed CBOR framing shared by
// requests, responses, and streamed-file frames, plus the tagged-union
// message schema built on top of it.
//
// Wire format: an 8-byte big-endian length prefix followed by exactly
// that many bytes of CBOR. The two fields are read separately so the
// payload buffer is sized exactly to the prefix instead of being grown
// speculatively.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// DefaultMaxPayloadSize bounds a single envelope's payload. It is large
// enough for an inline file transfer yet protects the decoder from a
// hostile or corrupted length prefix demanding an unreasonable
// allocation.
const DefaultMaxPayloadSize = 1 << 30 // 1 GiB

// lenSize is the width in bytes of the big-endian length prefix.
const lenSize = 8

var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Codec reads and writes envelopes on a single underlying stream. It is
// not safe for concurrent use by multiple goroutines on the same
// direction (read vs write may run concurrently, reading concurrently
// with itself may not), matching the session engine's single
// reader/single writer usage.
type Codec struct {
	r          io.Reader
	w          io.Writer
	maxPayload uint64
}

// NewCodec wraps rw for framed reads and writes using DefaultMaxPayloadSize.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{r: bufio.NewReader(rw), w: rw, maxPayload: DefaultMaxPayloadSize}
}

// NewCodecSize wraps rw for framed reads and writes, bounding payloads to
// maxPayload bytes.
func NewCodecSize(rw io.ReadWriter, maxPayload uint64) *Codec {
	return &Codec{r: bufio.NewReader(rw), w: rw, maxPayload: maxPayload}
}

// Write serializes v to CBOR and writes the length-prefixed envelope. It
// returns the total number of bytes written (prefix + payload). A
// partial underlying write is reported as an error; callers never see a
// truncated envelope reported as success.
func (c *Codec) Write(v interface{}) (int, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("wire: encode: %w", err)
	}

	var lenBuf [lenSize]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))

	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return 0, fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return 0, fmt.Errorf("wire: write payload: %w", err)
	}

	return lenSize + len(payload), nil
}

// Read reads one length-prefixed envelope and CBOR-decodes it into v,
// which must be a pointer. On success the stream has advanced exactly
// 8+n bytes; on failure the stream should be considered poisoned.
func (c *Codec) Read(v interface{}) error {
	var lenBuf [lenSize]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return fmt.Errorf("wire: read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint64(lenBuf[:])
	if n > c.maxPayload {
		return fmt.Errorf("wire: payload of %d bytes exceeds max of %d", n, c.maxPayload)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("wire: read payload: %w", err)
	}

	if err := cbor.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}

	return nil
}

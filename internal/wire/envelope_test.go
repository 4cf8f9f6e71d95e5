package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		NewText("hello!!!!"),
		NewFile("report.txt", []byte{1, 2, 3}),
		NewImage("cat.png", []byte{0xFF, 0xD8}),
		NewFileStream("a.bin", 10),
		NewImageStream("b.png", 1024),
		NewAnnounceNickname("alice"),
	}

	for _, in := range cases {
		var buf bytes.Buffer
		codec := NewCodec(&rwPair{&buf, &buf})

		_, err := codec.Write(in)
		require.NoError(t, err)

		var out Request
		require.NoError(t, codec.Read(&out))
		require.Equal(t, in, out)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		OkResponse(),
		ReadError("bad frame"),
		ClientAbortError(),
		MessageExecError("disk full"),
		UnspecifiedError("oops"),
	}

	for _, in := range cases {
		var buf bytes.Buffer
		codec := NewCodec(&rwPair{&buf, &buf})

		_, err := codec.Write(in)
		require.NoError(t, err)

		var out Response
		require.NoError(t, codec.Read(&out))
		require.Equal(t, in, out)
	}
}

func TestFrameBoundary(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&rwPair{&buf, &buf})

	v1 := NewText("first")
	v2 := NewText("second")

	_, err := codec.Write(v1)
	require.NoError(t, err)
	_, err = codec.Write(v2)
	require.NoError(t, err)

	var out1, out2 Request
	require.NoError(t, codec.Read(&out1))
	require.NoError(t, codec.Read(&out2))
	require.Equal(t, v1, out1)
	require.Equal(t, v2, out2)

	// Exact EOF: a third read must fail cleanly, not hang or return stale data.
	var out3 Request
	require.Error(t, codec.Read(&out3))
}

func TestStreamFrameRoundTrip(t *testing.T) {
	cases := []StreamFrame{
		NewPayloadFrame([]byte{1, 2, 3, 4, 5}),
		NewEndFrame(),
		NewAbortFrame(),
	}

	for _, in := range cases {
		var buf bytes.Buffer
		codec := NewCodec(&rwPair{&buf, &buf})

		_, err := codec.Write(in)
		require.NoError(t, err)

		var out StreamFrame
		require.NoError(t, codec.Read(&out))
		require.Equal(t, in, out)
	}
}

func TestZeroLengthPayloadFrameStaysAPayload(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&rwPair{&buf, &buf})

	_, err := codec.Write(NewPayloadFrame(nil))
	require.NoError(t, err)

	var out StreamFrame
	require.NoError(t, codec.Read(&out))
	require.True(t, out.IsPayload())
	require.Empty(t, out.Payload)
}

func TestReadRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodecSize(&rwPair{&buf, &buf}, 4)

	_, err := codec.Write(NewText("this is definitely longer than four bytes of cbor"))
	require.NoError(t, err)

	var out Request
	require.Error(t, codec.Read(&out))
}

// rwPair adapts a bytes.Buffer (or split reader/writer) into an
// io.ReadWriter for the codec under test.
type rwPair struct {
	io.Reader
	io.Writer
}

package wire

import "strings"

// Request is the tagged union of messages a client may send. Exactly one
// field is set; encoding as a single-entry map keeps the variant name
// stable on the wire regardless of which language decodes it.
type Request struct {
	Text             *string         `cbor:"Text,omitempty"`
	File             *FilePayload    `cbor:"File,omitempty"`
	Image            *FilePayload    `cbor:"Image,omitempty"`
	FileStream       *StreamAnnounce `cbor:"FileStream,omitempty"`
	ImageStream      *StreamAnnounce `cbor:"ImageStream,omitempty"`
	AnnounceNickname *string         `cbor:"AnnounceNickname,omitempty"`
}

// FilePayload carries the basename and the fully-buffered bytes of an
// inline File or Image request.
type FilePayload struct {
	Name  string `cbor:"Name"`
	Bytes []byte `cbor:"Bytes"`
}

// StreamAnnounce carries the basename and exact announced size of a
// streamed FileStream or ImageStream request. The frames making up the
// upload itself follow as separate StreamFrame envelopes.
type StreamAnnounce struct {
	Name string `cbor:"Name"`
	Size uint64 `cbor:"Size"`
}

// NewText builds a Text request.
func NewText(s string) Request { return Request{Text: &s} }

// NewFile builds an inline File request.
func NewFile(name string, bytes []byte) Request {
	return Request{File: &FilePayload{Name: name, Bytes: bytes}}
}

// NewImage builds an inline Image request. Callers must still validate
// the .png constraint; NewImage does not enforce it so test code can
// construct invalid requests deliberately.
func NewImage(name string, bytes []byte) Request {
	return Request{Image: &FilePayload{Name: name, Bytes: bytes}}
}

// NewFileStream builds a FileStream announcement.
func NewFileStream(name string, size uint64) Request {
	return Request{FileStream: &StreamAnnounce{Name: name, Size: size}}
}

// NewImageStream builds an ImageStream announcement.
func NewImageStream(name string, size uint64) Request {
	return Request{ImageStream: &StreamAnnounce{Name: name, Size: size}}
}

// NewAnnounceNickname builds an AnnounceNickname request.
func NewAnnounceNickname(nick string) Request { return Request{AnnounceNickname: &nick} }

// IsImageName reports whether name satisfies the Image*/.png constraint.
func IsImageName(name string) bool {
	return strings.HasSuffix(name, ".png")
}

// Variant names a Request's active field, for logging and metrics.
func (r Request) Variant() string {
	switch {
	case r.Text != nil:
		return "Text"
	case r.File != nil:
		return "File"
	case r.Image != nil:
		return "Image"
	case r.FileStream != nil:
		return "FileStream"
	case r.ImageStream != nil:
		return "ImageStream"
	case r.AnnounceNickname != nil:
		return "AnnounceNickname"
	default:
		return "Unknown"
	}
}

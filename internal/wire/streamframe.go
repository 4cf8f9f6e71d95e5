package wire

// StreamFrame is the sub-vocabulary sent after a FileStream/ImageStream
// request: a sequence of Payload chunks terminated by End or Abort.
//
// A zero-length Payload chunk is never produced by this module's own
// client driver (the chunk reader stops at io.EOF before emitting an
// empty frame), so the omitempty ambiguity between "no Payload field"
// and "empty Payload" never arises in practice; a conformance test pins
// down that such a frame still decodes as a payload.
type StreamFrame struct {
	Payload []byte `cbor:"Payload,omitempty"`
	End     bool   `cbor:"End,omitempty"`
	Abort   bool   `cbor:"Abort,omitempty"`
}

// NewPayloadFrame builds a Payload chunk frame.
func NewPayloadFrame(data []byte) StreamFrame { return StreamFrame{Payload: data} }

// NewEndFrame builds the End terminator frame.
func NewEndFrame() StreamFrame { return StreamFrame{End: true} }

// NewAbortFrame builds the Abort terminator frame.
func NewAbortFrame() StreamFrame { return StreamFrame{Abort: true} }

// IsPayload reports whether the frame carries chunk data.
func (f StreamFrame) IsPayload() bool { return !f.End && !f.Abort }

package wire

// Response is the tagged union a server sends back for every request: Ok
// or Err(kind).
type Response struct {
	Ok  bool       `cbor:"Ok,omitempty"`
	Err *ErrorKind `cbor:"Err,omitempty"`
}

// ErrorKind is the tagged union of error kinds: exactly one of Read,
// ClientAbort, MessageExec, or Unspecified is set.
type ErrorKind struct {
	Read        *string `cbor:"Read,omitempty"`
	ClientAbort bool    `cbor:"ClientAbort,omitempty"`
	MessageExec *string `cbor:"MessageExec,omitempty"`
	Unspecified *string `cbor:"Unspecified,omitempty"`
}

// OkResponse is the successful response.
func OkResponse() Response { return Response{Ok: true} }

// ErrResponse wraps kind as an Err response.
func ErrResponse(kind ErrorKind) Response { return Response{Err: &kind} }

// ReadError builds an Err(Read(detail)) response.
func ReadError(detail string) Response { return ErrResponse(ErrorKind{Read: &detail}) }

// ClientAbortError builds an Err(ClientAbort) response.
func ClientAbortError() Response { return ErrResponse(ErrorKind{ClientAbort: true}) }

// MessageExecError builds an Err(MessageExec(detail)) response.
func MessageExecError(detail string) Response {
	return ErrResponse(ErrorKind{MessageExec: &detail})
}

// UnspecifiedError builds an Err(Unspecified(detail)) response.
func UnspecifiedError(detail string) Response {
	return ErrResponse(ErrorKind{Unspecified: &detail})
}

// String renders the error kind for logs and the admin HTML view.
func (e ErrorKind) String() string {
	switch {
	case e.Read != nil:
		return "Read: " + *e.Read
	case e.ClientAbort:
		return "ClientAbort"
	case e.MessageExec != nil:
		return "MessageExec: " + *e.MessageExec
	case e.Unspecified != nil:
		return "Unspecified: " + *e.Unspecified
	default:
		return "Unknown"
	}
}

// IsOk reports whether the response is Ok.
func (r Response) IsOk() bool { return r.Ok }

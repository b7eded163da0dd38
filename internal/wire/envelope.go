// Package wire defines the binary RPC envelope exchanged over the two
// shmring rings and its CBOR codec (spec.md §5, §6).
//
// Every frame placed on the request ring is an Envelope carrying a
// Request; every frame placed on the response ring is an Envelope
// carrying exactly one of Response or Error. call_id correlates a
// Request with its eventual Response/Error and is chosen by the client
// (internal/rpcpump), never by the daemon.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Envelope is the top-level frame shape. Exactly one of Request,
// Response, or Error is populated, matching which ring the frame
// travels on and whether the call succeeded.
type Envelope struct {
	CallID   uint64        `cbor:"call_id"`
	Request  *Request      `cbor:"request,omitempty"`
	Response *Response     `cbor:"response,omitempty"`
	Error    *ErrorPayload `cbor:"error,omitempty"`
}

// Request is the body of a client-to-daemon call.
type Request struct {
	Method string `cbor:"method"`
	Args   []any  `cbor:"args"`
}

// Response is the body of a successful daemon-to-client reply.
type Response struct {
	Result any `cbor:"result"`
}

// ErrorPayload is the body of a failed daemon-to-client reply. Code is a
// short machine-matchable string (e.g. "NOT_FOUND"); Message is
// human-readable detail. Both travel verbatim into rpcerr.RemoteError on
// the client side.
type ErrorPayload struct {
	Code    string `cbor:"code"`
	Message string `cbor:"message"`
}

var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building canonical CBOR encode mode: %v", err))
	}
	return mode
}()

// EncodeRequest builds the wire bytes for a client call.
func EncodeRequest(callID uint64, method string, args []any) ([]byte, error) {
	env := Envelope{CallID: callID, Request: &Request{Method: method, Args: args}}
	return encMode.Marshal(env)
}

// EncodeResponse builds the wire bytes for a successful reply.
func EncodeResponse(callID uint64, result any) ([]byte, error) {
	env := Envelope{CallID: callID, Response: &Response{Result: result}}
	return encMode.Marshal(env)
}

// EncodeError builds the wire bytes for a failed reply.
func EncodeError(callID uint64, code, message string) ([]byte, error) {
	env := Envelope{CallID: callID, Error: &ErrorPayload{Code: code, Message: message}}
	return encMode.Marshal(env)
}

// Decode parses any envelope frame, request or reply.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// IsReply reports whether env carries a Response or an Error, i.e. it
// belongs on the response ring.
func (e Envelope) IsReply() bool {
	return e.Response != nil || e.Error != nil
}

package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonwraymond/scriptbridge/failure"
)

// Line markers. They must match the shim written into the environment.
const (
	RequestMarker  = "@@SCRIPTBRIDGE_REQUEST@@"
	ResponseMarker = "@@SCRIPTBRIDGE_RESPONSE@@"
)

// MalformedID is the reply id used when a request could not be decoded.
const MalformedID int64 = -1

// ErrMalformedRequest is returned by codecs for undecodable request payloads.
var ErrMalformedRequest = errors.New("malformed request")

// Request is one capability call sent by the script.
type Request struct {
	ID       int64  `json:"id"`
	Function string `json:"function"`
	Args     []any  `json:"args"`
}

// Response answers one Request. Exactly one of Result or Error is meaningful:
// a non-empty Error marks the call as failed.
type Response struct {
	ID     int64
	Result any
	Error  string

	// Kind is set only when the capability failed with a classified failure.
	Kind failure.Kind
}

// MarshalJSON renders {"id","result"} for successes and {"id","error","kind"}
// for failures, so a null result is never mistaken for an error.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			ID    int64        `json:"id"`
			Error string       `json:"error"`
			Kind  failure.Kind `json:"kind,omitempty"`
		}{r.ID, r.Error, r.Kind})
	}
	return json.Marshal(struct {
		ID     int64 `json:"id"`
		Result any   `json:"result"`
	}{r.ID, r.Result})
}

// Codec converts protocol payloads to and from bytes. Payloads exclude the
// line markers and the trailing newline.
type Codec interface {
	DecodeRequest(data []byte) (Request, error)
	EncodeResponse(resp Response) ([]byte, error)
}

// JSONCodec is the default Codec. Numbers decode as json.Number so values
// round-trip without float conversion, and non-ASCII text is written raw.
type JSONCodec struct{}

// wireRequest detects absent fields, which the zero values of Request
// cannot tell apart from explicit ones.
type wireRequest struct {
	ID       *int64  `json:"id"`
	Function *string `json:"function"`
	Args     *[]any  `json:"args"`
}

// DecodeRequest implements Codec. The id, function and args fields are all
// required; args may be an empty array but not null.
func (JSONCodec) DecodeRequest(data []byte) (Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireRequest
	if err := dec.Decode(&w); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if dec.More() {
		return Request{}, fmt.Errorf("%w: trailing data", ErrMalformedRequest)
	}
	switch {
	case w.ID == nil:
		return Request{}, fmt.Errorf("%w: missing id", ErrMalformedRequest)
	case w.Function == nil || *w.Function == "":
		return Request{}, fmt.Errorf("%w: missing function", ErrMalformedRequest)
	case w.Args == nil || *w.Args == nil:
		return Request{}, fmt.Errorf("%w: missing args", ErrMalformedRequest)
	}
	return Request{ID: *w.ID, Function: *w.Function, Args: *w.Args}, nil
}

// EncodeResponse implements Codec.
func (JSONCodec) EncodeResponse(resp Response) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(b.Bytes(), []byte("\n")), nil
}

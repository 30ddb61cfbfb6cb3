package canister

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrRemote matches every *RemoteError.
	ErrRemote = errors.New("canister returned err")

	// ErrMalformedResult is returned when a reply is neither ok nor err.
	ErrMalformedResult = errors.New("malformed canister result")
)

// RemoteError carries the message of an {"err": ...} reply.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Method == "" {
		return "canister: " + e.Message
	}
	return fmt.Sprintf("canister %s: %s", e.Method, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}

// Err builds a RemoteError for method.
func Err(method, message string) error {
	return &RemoteError{Method: method, Message: message}
}

// IsRemote reports whether err is an err-variant reply.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemote)
}

// DecodeResult unwraps {"ok": T} or {"err": string}.
func DecodeResult[T any](method string, raw []byte) (T, error) {
	var zero T
	if !gjson.ValidBytes(raw) {
		return zero, fmt.Errorf("%w: %s: invalid json", ErrMalformedResult, method)
	}
	res := gjson.ParseBytes(raw)
	if e := res.Get("err"); e.Exists() {
		return zero, &RemoteError{Method: method, Message: e.String()}
	}
	ok := res.Get("ok")
	if !ok.Exists() {
		return zero, fmt.Errorf("%w: %s: no ok or err field", ErrMalformedResult, method)
	}
	var v T
	if err := json.Unmarshal([]byte(ok.Raw), &v); err != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrMalformedResult, method, err)
	}
	return v, nil
}

// DecodeOptional decodes a bare query value where null means absent.
func DecodeOptional[T any](method string, raw []byte) (*T, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: %s: invalid json", ErrMalformedResult, method)
	}
	res := gjson.ParseBytes(raw)
	if res.Type == gjson.Null {
		return nil, nil
	}
	// Some gateways render opt as a zero- or one-element array.
	if res.IsArray() {
		items := res.Array()
		if len(items) == 0 {
			return nil, nil
		}
		res = items[0]
	}
	var v T
	if err := json.Unmarshal([]byte(res.Raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResult, method, err)
	}
	return &v, nil
}

// DecodeValue decodes a bare query value.
func DecodeValue[T any](method string, raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformedResult, method, err)
	}
	return v, nil
}

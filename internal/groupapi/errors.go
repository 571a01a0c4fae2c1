package groupapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned for any response whose status code is not the one
// the endpoint promises.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("group api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), msg)
	}
	return fmt.Sprintf("group api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Message returns the server's message when the body is an ErrorBody,
// otherwise the raw body.
func (e *HTTPError) Message() string {
	var body ErrorBody
	if err := json.Unmarshal([]byte(e.Body), &body); err == nil && body.Message != "" {
		return body.Message
	}
	return e.Body
}

// NetworkError wraps a transport failure: the request never produced a
// response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("group api: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodingError is returned when a response body cannot be mapped onto the
// domain model, including unknown enum strings.
type DecodingError struct {
	Op  string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("group api: decode %s: %v", e.Op, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Upstream   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Upstream, e.StatusCode, e.Message)
}

// Temporary reports whether retrying later could succeed.
func (e *StatusError) Temporary() bool {
	return retryableStatus(e.StatusCode)
}

// upstreamError matches {"error":{"message":"..."}} bodies.
type upstreamError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes resp.Body and returns a
// *StatusError. A JSON {"error":{"message"}} body supplies the message;
// otherwise the raw body (up to 1 MB) is used.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &StatusError{Upstream: upstream, StatusCode: resp.StatusCode, Message: "unreadable body: " + err.Error()}
	}

	msg := string(raw)
	var body upstreamError
	if json.Unmarshal(raw, &body) == nil && body.Error != nil && body.Error.Message != "" {
		msg = body.Error.Message
	}
	return &StatusError{Upstream: upstream, StatusCode: resp.StatusCode, Message: msg}
}

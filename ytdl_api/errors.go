package ytdl_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	networkErrorMessage = "Network error or server is offline!"
	serverErrorMessage  = "Internal server error"
)

// InvalidUrlError is returned when the configured base URL cannot be used.
type InvalidUrlError string

func (e InvalidUrlError) Error() string {
	return "invalid URL " + strconv.Quote(string(e)) + " in base_url"
}

// NetworkError reports a request that never produced an HTTP response.
type NetworkError string

func (e NetworkError) Error() string {
	return "network error " + strconv.Quote(string(e))
}

// DecodeError reports a response body that could not be interpreted.
type DecodeError string

func (e DecodeError) Error() string {
	return "decode error " + strconv.Quote(string(e))
}

// ValidationError is a 4xx response carrying a structured list of field errors.
type ValidationError struct {
	Status   int
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [status=%d]: %s", e.Status, strings.Join(e.Messages, "; "))
}

// ServerError is any other non-2xx response. Detail is the server supplied
// message and may be empty.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error [status=%d]", e.Status)
	}
	return fmt.Sprintf("server error [status=%d]: %s", e.Status, e.Detail)
}

// UserMessage turns an error returned by this package into the single line
// shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) && len(validationErr.Messages) > 0 {
		return validationErr.Messages[0]
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		if serverErr.Detail != "" {
			return serverErr.Detail
		}
		return serverErrorMessage
	}
	var networkErr NetworkError
	if errors.As(err, &networkErr) || errors.Is(err, context.DeadlineExceeded) {
		return networkErrorMessage
	}
	return err.Error()
}

// parseErrorResponse builds the typed error for a non-2xx response.
// The body is expected to look like either
//
//	{"detail": "Download not found"}
//
// or, for request validation failures,
//
//	{"detail": [{"loc": ["body", "url"], "msg": "Domain is not allowed", "type": "value_error"}]}
func parseErrorResponse(status int, body []byte) error {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return &ServerError{Status: status}
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		return &ServerError{Status: status, Detail: detail}
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		messages := make([]string, 0, len(items))
		for _, item := range items {
			messages = append(messages, item.Msg)
		}
		return &ValidationError{Status: status, Messages: messages}
	}
	return &ServerError{Status: status}
}

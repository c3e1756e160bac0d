package authclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a request is still rejected after one refresh
	ErrUnauthorized = errors.New("authclient: unauthorized")
	// ErrSessionExpired wraps the reason a refresh was rejected; the store is cleared
	ErrSessionExpired = errors.New("authclient: session expired")
	// ErrNoRefreshToken means there was nothing to exchange
	ErrNoRefreshToken = errors.New("authclient: no refresh token")
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("authclient: server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authclient: server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// errorBody accepts both the envelope and the flat {"message"} shape
type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b errorBody) apiError(status int) *APIError {
	e := &APIError{StatusCode: status, Message: b.Message}
	if b.Error != nil {
		e.Code = b.Error.Code
		e.Message = b.Error.Message
	}
	return e
}

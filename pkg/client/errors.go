package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned (wrapped in *APIError) for registry rejections.
var (
	ErrUnauthorized    = errors.New("caller is not approved or the owner of the corresponding credential token")
	ErrEmptyValue      = errors.New("public key cannot be empty")
	ErrEmptyName       = errors.New("slot name cannot be empty")
	ErrNotFound        = errors.New("public key does not exist for this token ID and name")
	ErrIndexOutOfRange = errors.New("public key index out of range")
	ErrNoSuchToken     = errors.New("credential token does not exist")
	ErrNoCredential    = errors.New("address holds no credential")
	ErrAlreadyIssued   = errors.New("address already holds a credential")
	ErrNotOwner        = errors.New("you are not the owner of this token")
	ErrUnauthenticated = errors.New("caller token missing or invalid")
	ErrLoginFailed     = errors.New("login challenge failed")
	ErrForbidden       = errors.New("admin secret rejected")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

var codeErrors = map[string]error{
	"unauthorized":       ErrUnauthorized,
	"empty_value":        ErrEmptyValue,
	"empty_name":         ErrEmptyName,
	"not_found":          ErrNotFound,
	"index_out_of_range": ErrIndexOutOfRange,
	"no_such_token":      ErrNoSuchToken,
	"no_credential":      ErrNoCredential,
	"already_issued":     ErrAlreadyIssued,
	"not_owner":          ErrNotOwner,
	"unauthenticated":    ErrUnauthenticated,
	"login_failed":       ErrLoginFailed,
	"forbidden":          ErrForbidden,
	"rate_limited":       ErrRateLimited,
}

// APIError is a non-2xx response from the registry.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("registry error %d: %s", e.Status, e.Message)
}

// Unwrap maps the response code to the matching sentinel, if any.
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		msg := string(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg}
	}
	return &APIError{Status: status, Code: payload.Code, Message: payload.Error}
}

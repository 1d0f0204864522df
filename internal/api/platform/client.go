package platform

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrLoginFailed is wrapped by StatusError when the platform rejects a login.
	ErrLoginFailed = errors.New("login failed")
	// ErrMalformedLoginResponse is returned when a successful login carries no usable token.
	ErrMalformedLoginResponse = errors.New("malformed login response")
	// errEmptyToken is returned when Upload is called without a token.
	errEmptyToken = errors.New("access token is empty")
)

// StatusError reports a non-success status returned by the platform.
type StatusError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Body is the verbatim response body.
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d %s: %s", ErrLoginFailed, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Unwrap makes errors.Is(err, ErrLoginFailed) hold.
func (e *StatusError) Unwrap() error {
	return ErrLoginFailed
}

// Token is an access token issued by Login.
type Token struct {
	// AccessToken is sent as a bearer credential.
	AccessToken string
}

// Client talks to the platform login and upload endpoints.
type Client struct {
	// loginURL is the absolute URL of the login endpoint.
	loginURL string
	// uploadURL is the absolute URL of the upload endpoint.
	uploadURL string
	// httpClient performs the requests.
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a client for the given endpoints.
func NewClient(loginURL, uploadURL string, opts ...Option) *Client {
	c := &Client{
		loginURL:   loginURL,
		uploadURL:  uploadURL,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

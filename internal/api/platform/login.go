package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oshokin/shippedbrain/internal/logger"
	"github.com/oshokin/shippedbrain/internal/version"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Data *struct {
		Results *struct {
			AccessToken string `json:"access_token"`
		} `json:"results"`
	} `json:"data"`
}

// Login exchanges credentials for an access token.
// Any status other than 200 yields a *StatusError carrying the verbatim body.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Content-Type", "application/json")

	logger.DebugKV(ctx, "Logging in", "url", c.loginURL, "email", email)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: response.StatusCode,
			Body:       string(body),
		}
	}

	var decoded loginResponse
	if err = json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLoginResponse, err)
	}

	if decoded.Data == nil || decoded.Data.Results == nil || strings.TrimSpace(decoded.Data.Results.AccessToken) == "" {
		return nil, fmt.Errorf("%w: no data.results.access_token", ErrMalformedLoginResponse)
	}

	return &Token{AccessToken: decoded.Data.Results.AccessToken}, nil
}

package platform

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/oshokin/shippedbrain/internal/logger"
	"github.com/oshokin/shippedbrain/internal/version"
)

// uploadField is the multipart field carrying the archive.
const uploadField = "file"

// Upload posts the archive at archivePath as the multipart field "file".
// The response is returned as is whatever its status; the caller closes its body.
func (c *Client) Upload(ctx context.Context, token *Token, archivePath string) (*http.Response, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errEmptyToken
	}

	archive, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		defer func() {
			_ = archive.Close()
		}()

		part, err := form.CreateFormFile(uploadField, filepath.Base(archivePath))
		if err == nil {
			_, err = io.Copy(part, archive)
		}

		if err == nil {
			err = form.Close()
		}

		_ = writer.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
	if err != nil {
		_ = body.Close()
		return nil, err
	}

	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent())

	logger.InfoKV(ctx, "Uploading archive", "url", c.uploadURL, "archive", archivePath)

	response, err := c.authorized(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}

	return response, nil
}

// authorized wraps the client transport with a bearer token source.
func (c *Client) authorized(ctx context.Context, token *Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
	}))
}

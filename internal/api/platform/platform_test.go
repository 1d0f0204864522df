package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePlatform mimics the login and upload endpoints.
type fakePlatform struct {
	// loginStatus is returned by the login endpoint.
	loginStatus int
	// loginBody is written by the login endpoint.
	loginBody string
	// uploads counts upload requests.
	uploads atomic.Int32

	mu sync.Mutex
	// uploaded holds the last received file part.
	uploaded []byte
	// filename is the name of the last received file part.
	filename string
	// authorization is the last upload Authorization header.
	authorization string
}

func (p *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		p.login(w, r)
	case "/upload":
		p.upload(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePlatform) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost ||
		r.Header.Get("Accept") != "application/json" ||
		r.Header.Get("Content-Type") != "application/json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != "user@x" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(p.loginStatus)
	_, _ = io.WriteString(w, p.loginBody)
}

func (p *fakePlatform) upload(w http.ResponseWriter, r *http.Request) {
	p.uploads.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.authorization = r.Header.Get("Authorization")

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	defer func() {
		_ = file.Close()
	}()

	p.filename = header.Filename
	p.uploaded, _ = io.ReadAll(file)

	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, `{"model":"wine-quality"}`)
}

func newFakePlatform(t *testing.T, status int, body string) (*fakePlatform, *Client) {
	t.Helper()

	fake := &fakePlatform{loginStatus: status, loginBody: body}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return fake, NewClient(server.URL+"/login", server.URL+"/upload", WithHTTPClient(server.Client()))
}

// TestLogin covers successful, rejected and malformed logins.
func TestLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, client := newFakePlatform(t, http.StatusOK, `{"data":{"results":{"access_token":"T"}}}`)
	token, err := client.Login(ctx, "user@x", "p")
	require.NoError(t, err)
	require.Equal(t, "T", token.AccessToken)

	_, client = newFakePlatform(t, http.StatusUnauthorized, `{"error":"bad credentials"}`)
	_, err = client.Login(ctx, "user@x", "p")
	require.ErrorIs(t, err, ErrLoginFailed)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	require.Equal(t, `{"error":"bad credentials"}`, statusErr.Body)
	require.Contains(t, err.Error(), "401")

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"data":{}}`,
		`{"data":{"results":{"access_token":""}}}`,
		`{"data":{"results":{"access_token":42}}}`,
	} {
		_, client = newFakePlatform(t, http.StatusOK, body)
		_, err = client.Login(ctx, "user@x", "p")
		require.ErrorIs(t, err, ErrMalformedLoginResponse, body)
	}
}

// TestUpload checks the multipart body and the bearer header.
func TestUpload(t *testing.T) {
	t.Parallel()

	fake, client := newFakePlatform(t, http.StatusOK, "")

	archive := filepath.Join(t.TempDir(), "3f2b.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zip-bytes"), 0o600))

	response, err := client.Upload(context.Background(), &Token{AccessToken: "T"}, archive)
	require.NoError(t, err)

	defer func() {
		_ = response.Body.Close()
	}()

	require.Equal(t, http.StatusCreated, response.StatusCode)

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"model":"wine-quality"}`, string(body))

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Equal(t, "Bearer T", fake.authorization)
	require.Equal(t, "3f2b.zip", fake.filename)
	require.Equal(t, []byte("zip-bytes"), fake.uploaded)
	require.Equal(t, int32(1), fake.uploads.Load())
}

// TestUpload_Errors rejects missing tokens and archives before contacting the platform.
func TestUpload_Errors(t *testing.T) {
	t.Parallel()

	fake, client := newFakePlatform(t, http.StatusOK, "")

	_, err := client.Upload(context.Background(), nil, "unused.zip")
	require.ErrorIs(t, err, errEmptyToken)

	_, err = client.Upload(context.Background(), &Token{AccessToken: "T"}, filepath.Join(t.TempDir(), "missing.zip"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Zero(t, fake.uploads.Load())
}

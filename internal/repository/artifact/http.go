package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// proxyPath is the artifact proxy route of the tracking server.
const proxyPath = "/api/2.0/mlflow-artifacts/artifacts"

var errBadHTTPStatus = errors.New("unexpected http status")

// HTTPRepository serves artifacts through the tracking server artifact proxy.
type HTTPRepository struct {
	baseURL *url.URL
	root    string
	client  *http.Client
}

// fileInfo is one entry of an artifact listing.
type fileInfo struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

type listResponse struct {
	Files []fileInfo `json:"files"`
}

// NewHTTPRepository creates a repository for root on the tracking server at baseURL.
func NewHTTPRepository(baseURL, root string, client *http.Client) (*HTTPRepository, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: tracking server URL %q", ErrUnsupportedScheme, baseURL)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPRepository{
		baseURL: u,
		root:    strings.Trim(root, "/"),
		client:  client,
	}, nil
}

// Download walks the listing at artifactPath and fetches every file into dst/artifactPath.
func (r *HTTPRepository) Download(ctx context.Context, artifactPath, dst string) (string, error) {
	rel, err := cleanArtifactPath(artifactPath)
	if err != nil {
		return "", err
	}

	target := filepath.Join(dst, filepath.FromSlash(rel))

	files, err := r.list(ctx, rel)
	if err != nil {
		return "", err
	}

	// An empty listing means either a file or nothing at all.
	if len(files) == 0 {
		if err = r.fetch(ctx, rel, target); err != nil {
			return "", err
		}

		return target, nil
	}

	for _, f := range files {
		child := path.Join(rel, path.Base(f.Path))

		if f.IsDir {
			if _, err = r.Download(ctx, child, dst); err != nil {
				return "", err
			}

			continue
		}

		if err = r.fetch(ctx, child, filepath.Join(dst, filepath.FromSlash(child))); err != nil {
			return "", err
		}
	}

	return target, nil
}

// Upload PUTs every file of srcDir under artifactPath.
func (r *HTTPRepository) Upload(ctx context.Context, srcDir, artifactPath string) error {
	rel, err := cleanArtifactPath(artifactPath)
	if err != nil {
		return err
	}

	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fileRel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}

		return r.put(ctx, path.Join(rel, filepath.ToSlash(fileRel)), p)
	})
}

func (r *HTTPRepository) list(ctx context.Context, rel string) ([]fileInfo, error) {
	u := r.endpoint("")
	u.RawQuery = url.Values{"path": []string{r.fullPath(rel)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list %s, %s: %w", u, resp.Status, errBadHTTPStatus)
	}

	var listing listResponse
	if err = json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode artifact listing: %w", err)
	}

	return listing.Files, nil
}

func (r *HTTPRepository) fetch(ctx context.Context, rel, target string) error {
	u := r.endpoint(r.fullPath(rel))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", rel, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("download %s, %s: %w", u, resp.Status, errBadHTTPStatus)
	}

	if err = os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}

	return out.Close()
}

func (r *HTTPRepository) put(ctx context.Context, rel, local string) error {
	f, err := os.Open(filepath.Clean(local))
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	u := r.endpoint(r.fullPath(rel))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), f)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload %s, %s: %w", u, resp.Status, errBadHTTPStatus)
	}

	return nil
}

func (r *HTTPRepository) fullPath(rel string) string {
	return strings.Trim(path.Join(r.root, rel), "/")
}

func (r *HTTPRepository) endpoint(artifact string) *url.URL {
	u := *r.baseURL
	u.Path = path.Join(u.Path, proxyPath, artifact)

	return &u
}

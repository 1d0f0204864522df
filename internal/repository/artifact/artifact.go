package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Repository reads and writes artifacts under a single artifact root.
type Repository interface {
	// Download copies the artifact subtree at artifactPath into dst/artifactPath
	// and returns the local path of the copy.
	Download(ctx context.Context, artifactPath, dst string) (string, error)
	// Upload copies the contents of srcDir under artifactPath ("" for the root).
	Upload(ctx context.Context, srcDir, artifactPath string) error
}

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrUnsupportedScheme is returned for artifact URIs no repository can serve.
	ErrUnsupportedScheme = errors.New("unsupported artifact URI scheme")
	// errInvalidPath is returned for artifact paths escaping the artifact root.
	errInvalidPath = errors.New("invalid artifact path")
)

// S3Options configures access to s3:// artifact roots.
type S3Options struct {
	// Endpoint is host[:port] of the storage service.
	Endpoint string
	// Region is the bucket region.
	Region string
	// AccessKey is the access key id.
	AccessKey string
	// SecretKey is the secret access key.
	SecretKey string
	// UseSSL enables HTTPS towards Endpoint.
	UseSSL bool
}

type options struct {
	s3          S3Options
	httpClient  *http.Client
	trackingURL string
}

// Option configures Open.
type Option func(*options)

// WithS3 sets the object storage settings used for s3:// roots.
func WithS3(s3 S3Options) Option {
	return func(o *options) {
		o.s3 = s3
	}
}

// WithHTTPClient sets the client used for the tracking server artifact proxy.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithTrackingURL sets the tracking server used to resolve host-less mlflow-artifacts URIs.
func WithTrackingURL(trackingURL string) Option {
	return func(o *options) {
		o.trackingURL = trackingURL
	}
}

// Open returns the repository serving the artifact root uri.
//
//nolint:ireturn // Callers only need the Repository behaviour.
func Open(uri string, opts ...Option) (Repository, error) {
	o := &options{
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(o)
	}

	if !strings.Contains(uri, ":") {
		return NewLocalRepository(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse artifact URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case "file":
		return NewLocalRepository(u.Path), nil
	case "s3":
		return NewS3Repository(u.Host, strings.TrimPrefix(u.Path, "/"), o.s3)
	case "mlflow-artifacts":
		base := o.trackingURL
		if u.Host != "" {
			base = "http://" + u.Host
		}

		return NewHTTPRepository(base, strings.TrimPrefix(u.Path, "/"), o.httpClient)
	case "http", "https":
		base, root := splitProxyURL(u)

		return NewHTTPRepository(base, root, o.httpClient)
	default:
		// Windows drive letters look like a scheme.
		if len(u.Scheme) == 1 {
			return NewLocalRepository(uri), nil
		}

		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// cleanArtifactPath normalizes a slash-separated artifact path and rejects escapes from the root.
func cleanArtifactPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")

	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", errInvalidPath, p)
		}
	}

	cleaned := strings.Trim(path.Clean("/"+p), "/")

	return cleaned, nil
}

// proxyRoute marks where the artifact root starts in a proxied http(s) artifact URI,
// e.g. http://host/api/2.0/mlflow-artifacts/artifacts/0/abc/artifacts.
const proxyRoute = "/mlflow-artifacts/artifacts"

// splitProxyURL returns the tracking server base and the artifact root of an http(s) artifact URI.
// A mount prefix in front of the api route stays in the base.
func splitProxyURL(u *url.URL) (string, string) {
	base := u.Scheme + "://" + u.Host

	if idx := strings.Index(u.Path, proxyRoute); idx >= 0 {
		prefix := strings.TrimSuffix(u.Path[:idx], strings.TrimSuffix(proxyPath, proxyRoute))

		return base + strings.TrimSuffix(prefix, "/"), strings.Trim(u.Path[idx+len(proxyRoute):], "/")
	}

	return base, strings.TrimPrefix(u.Path, "/")
}

package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/repository/artifact"
)

// Store defines the tracking operations the publisher depends on.
type Store interface {
	// GetRun returns the run with the given id.
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// CreateRun starts a new run in the experiment with the given tags.
	CreateRun(ctx context.Context, experimentID string, tags map[string]string) (*model.Run, error)
	// TerminateRun ends the run with a terminal status and records the end time.
	TerminateRun(ctx context.Context, runID string, status model.RunStatus) error
	// Artifacts opens the artifact repository of the run.
	Artifacts(ctx context.Context, run *model.Run) (artifact.Repository, error)
}

var (
	// ErrRunNotFound is returned when no run exists with the requested id.
	ErrRunNotFound = errors.New("run not found")
	// errRunIDRequired is returned for an empty run id.
	errRunIDRequired = errors.New("run id must be provided")
)

type options struct {
	httpClient      *http.Client
	artifactOptions []artifact.Option
	now             func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithHTTPClient sets the client used to reach a tracking server.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithArtifactOptions passes options to every artifact repository the store opens.
func WithArtifactOptions(opts ...artifact.Option) Option {
	return func(o *options) {
		o.artifactOptions = append(o.artifactOptions, opts...)
	}
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		httpClient: http.DefaultClient,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Open returns the store for a tracking URI.
// Empty URIs, file:// URIs and plain paths select a FileStore, http(s):// a RESTStore.
//
//nolint:ireturn // Callers only need the Store behaviour.
func Open(trackingURI string, opts ...Option) (Store, error) {
	trackingURI = strings.TrimSpace(trackingURI)
	if trackingURI == "" {
		return NewFileStore(DefaultFileStoreDir, opts...), nil
	}

	u, err := url.Parse(trackingURI)
	if err != nil || len(u.Scheme) <= 1 {
		return NewFileStore(filepath.Clean(trackingURI), opts...), nil
	}

	switch u.Scheme {
	case "file":
		return NewFileStore(u.Path, opts...), nil
	case "http", "https":
		return NewRESTStore(trackingURI, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported tracking URI scheme %q", u.Scheme)
	}
}

func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

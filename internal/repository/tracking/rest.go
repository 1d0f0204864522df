package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/repository/artifact"
	"github.com/oshokin/shippedbrain/internal/version"
)

const (
	runsAPIPath = "/api/2.0/mlflow/runs"

	errorCodeNotFound = "RESOURCE_DOES_NOT_EXIST"
)

var errBadHTTPStatus = errors.New("unexpected http status")

// RESTStore talks to a tracking server over its REST API.
type RESTStore struct {
	baseURL string
	opts    *options
}

// millis decodes an epoch-milliseconds value sent either as a JSON number or string.
type millis int64

func (m *millis) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("decode timestamp %s: %w", data, err)
	}

	*m = millis(v)

	return nil
}

type restTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type restRunInfo struct {
	RunID          string `json:"run_id"`
	RunUUID        string `json:"run_uuid"`
	RunName        string `json:"run_name"`
	ExperimentID   string `json:"experiment_id"`
	Status         string `json:"status"`
	StartTime      millis `json:"start_time"`
	EndTime        millis `json:"end_time"`
	ArtifactURI    string `json:"artifact_uri"`
	LifecycleStage string `json:"lifecycle_stage"`
}

type restRun struct {
	Info restRunInfo `json:"info"`
	Data struct {
		Tags []restTag `json:"tags"`
	} `json:"data"`
}

type runResponse struct {
	Run restRun `json:"run"`
}

type createRunRequest struct {
	ExperimentID string    `json:"experiment_id"`
	StartTime    int64     `json:"start_time"`
	RunName      string    `json:"run_name,omitempty"`
	Tags         []restTag `json:"tags,omitempty"`
}

type updateRunRequest struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	EndTime int64  `json:"end_time"`
}

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// NewRESTStore creates a store for the tracking server at baseURL.
func NewRESTStore(baseURL string, opts ...Option) *RESTStore {
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    newOptions(opts),
	}
}

// GetRun fetches a run by id.
func (s *RESTStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	if runID == "" {
		return nil, errRunIDRequired
	}

	query := url.Values{"run_id": []string{runID}}

	var resp runResponse
	if err := s.call(ctx, http.MethodGet, "get?"+query.Encode(), nil, &resp); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		return nil, err
	}

	return resp.Run.toModel()
}

// CreateRun starts a run in the experiment.
func (s *RESTStore) CreateRun(ctx context.Context, experimentID string, tags map[string]string) (*model.Run, error) {
	req := &createRunRequest{
		ExperimentID: experimentID,
		StartTime:    timeToMillis(s.opts.now()),
		RunName:      tags[model.TagRunName],
	}

	for key, value := range tags {
		req.Tags = append(req.Tags, restTag{Key: key, Value: value})
	}

	var resp runResponse
	if err := s.call(ctx, http.MethodPost, "create", req, &resp); err != nil {
		return nil, err
	}

	return resp.Run.toModel()
}

// TerminateRun updates the run status and end time.
func (s *RESTStore) TerminateRun(ctx context.Context, runID string, status model.RunStatus) error {
	req := &updateRunRequest{
		RunID:   runID,
		Status:  string(status),
		EndTime: timeToMillis(s.opts.now()),
	}

	return s.call(ctx, http.MethodPost, "update", req, nil)
}

// Artifacts opens the artifact root of the run, resolving proxied roots against this server.
//
//nolint:ireturn // Callers only need the Repository behaviour.
func (s *RESTStore) Artifacts(_ context.Context, run *model.Run) (artifact.Repository, error) {
	opts := append([]artifact.Option{
		artifact.WithTrackingURL(s.baseURL),
		artifact.WithHTTPClient(s.opts.httpClient),
	}, s.opts.artifactOptions...)

	return artifact.Open(run.ArtifactURI, opts...)
}

func (s *RESTStore) call(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	target := s.baseURL + runsAPIPath + "/" + endpoint

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call tracking server: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read tracking server response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if resp.StatusCode == http.StatusNotFound ||
			(json.Unmarshal(data, &apiErr) == nil && apiErr.ErrorCode == errorCodeNotFound) {
			return ErrRunNotFound
		}

		return fmt.Errorf("%s %s, %s: %s: %w", method, target, resp.Status, strings.TrimSpace(string(data)), errBadHTTPStatus)
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode tracking server response: %w", err)
	}

	return nil
}

func (r *restRun) toModel() (*model.Run, error) {
	status, err := model.ParseRunStatus(r.Info.Status)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]string, len(r.Data.Tags))
	for _, tag := range r.Data.Tags {
		tags[tag.Key] = tag.Value
	}

	id := r.Info.RunID
	if id == "" {
		id = r.Info.RunUUID
	}

	name := r.Info.RunName
	if name == "" {
		name = tags[model.TagRunName]
	}

	return &model.Run{
		ID:           id,
		ExperimentID: r.Info.ExperimentID,
		Name:         name,
		Status:       status,
		ArtifactURI:  r.Info.ArtifactURI,
		StartTime:    millisToTime(int64(r.Info.StartTime)),
		EndTime:      millisToTime(int64(r.Info.EndTime)),
		Tags:         tags,
	}, nil
}

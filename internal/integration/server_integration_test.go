package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/repository/tracking/trackingtest"
)

const (
	runsPath  = "/api/2.0/mlflow/runs/"
	proxyPath = "/api/2.0/mlflow-artifacts/artifacts"
)

type fakeRun struct {
	ExperimentID string
	Status       string
	Tags         map[string]string
}

// fakeServer plays both the tracking server with its artifact proxy and the hosting platform.
type fakeServer struct {
	mu sync.Mutex

	runs  map[string]*fakeRun
	files map[string][]byte

	nextRun int

	token         string
	authorization string
	uploaded      []byte
	uploads       int
}

// newFakeServer serves a finished run "R" in experiment "0" with a publishable model.
func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()

	fixture := trackingtest.Run{RunID: "R", ArtifactPath: "model"}

	s := &fakeServer{
		runs: map[string]*fakeRun{
			"R": {
				ExperimentID: "0",
				Status:       string(model.RunStatusFinished),
				Tags:         map[string]string{model.TagLogModelHistory: trackingtest.History(fixture)},
			},
		},
		files: map[string][]byte{
			"0/R/artifacts/model/MLmodel":            []byte(trackingtest.MLmodel("R", "model")),
			"0/R/artifacts/model/model.pkl":          []byte("pickled-model-bytes"),
			"0/R/artifacts/model/input_example.json": []byte(`{"columns": ["alcohol"], "data": [[9.4]]}`),
			"0/R/artifacts/model/data/weights.bin":   []byte("weights"),
		},
		token: "T",
	}

	server := httptest.NewServer(s)
	t.Cleanup(server.Close)

	return s, server
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.URL.Path == "/login":
		writeJSON(w, map[string]any{"data": map[string]any{"results": map[string]any{"access_token": s.token}}})
	case r.URL.Path == "/upload":
		s.upload(w, r)
	case strings.HasPrefix(r.URL.Path, runsPath):
		s.runsAPI(w, r, strings.TrimPrefix(r.URL.Path, runsPath))
	case r.URL.Path == proxyPath:
		s.list(w, r.URL.Query().Get("path"))
	case strings.HasPrefix(r.URL.Path, proxyPath+"/"):
		s.artifact(w, r, strings.TrimPrefix(r.URL.Path, proxyPath+"/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeServer) upload(w http.ResponseWriter, r *http.Request) {
	s.uploads++
	s.authorization = r.Header.Get("Authorization")

	file, _, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	defer func() {
		_ = file.Close()
	}()

	s.uploaded, _ = io.ReadAll(file)

	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, `{"status":"queued"}`)
}

func (s *fakeServer) runsAPI(w http.ResponseWriter, r *http.Request, endpoint string) {
	switch endpoint {
	case "get":
		id := r.URL.Query().Get("run_id")

		run, ok := s.runs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"error_code": "RESOURCE_DOES_NOT_EXIST"})

			return
		}

		writeJSON(w, s.runJSON(id, run))
	case "create":
		var req struct {
			ExperimentID string `json:"experiment_id"`
			Tags         []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"tags"`
		}

		_ = json.NewDecoder(r.Body).Decode(&req)

		s.nextRun++
		id := "B" + string(rune('0'+s.nextRun))
		run := &fakeRun{ExperimentID: req.ExperimentID, Status: string(model.RunStatusRunning), Tags: map[string]string{}}

		for _, tag := range req.Tags {
			run.Tags[tag.Key] = tag.Value
		}

		s.runs[id] = run
		writeJSON(w, s.runJSON(id, run))
	case "update":
		var req struct {
			RunID  string `json:"run_id"`
			Status string `json:"status"`
		}

		_ = json.NewDecoder(r.Body).Decode(&req)

		if run, ok := s.runs[req.RunID]; ok {
			run.Status = req.Status
		}

		writeJSON(w, map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeServer) runJSON(id string, run *fakeRun) map[string]any {
	tags := make([]map[string]string, 0, len(run.Tags))
	for key, value := range run.Tags {
		tags = append(tags, map[string]string{"key": key, "value": value})
	}

	return map[string]any{
		"run": map[string]any{
			"info": map[string]any{
				"run_id":        id,
				"experiment_id": run.ExperimentID,
				"status":        run.Status,
				"start_time":    "1621878700000",
				"artifact_uri":  "mlflow-artifacts:/" + run.ExperimentID + "/" + id + "/artifacts",
			},
			"data": map[string]any{"tags": tags},
		},
	}
}

// list returns the direct children of dir.
func (s *fakeServer) list(w http.ResponseWriter, dir string) {
	prefix := strings.Trim(dir, "/") + "/"
	seen := map[string]bool{}

	files := []map[string]any{}

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		rest := strings.TrimPrefix(name, prefix)
		child, _, isDir := strings.Cut(rest, "/")

		if seen[child] {
			continue
		}

		seen[child] = true
		files = append(files, map[string]any{"path": path.Join(dir, child), "is_dir": isDir})
	}

	writeJSON(w, map[string]any{"files": files})
}

func (s *fakeServer) artifact(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		contents, ok := s.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(contents)
	case http.MethodPut:
		contents, _ := io.ReadAll(r.Body)
		s.files[name] = contents

		writeJSON(w, map[string]any{})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

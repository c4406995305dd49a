package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/scanhub/pkg/model"
	"github.com/user/scanhub/pkg/registry"
)

func TestStartScan(t *testing.T) {
	d := registry.ForTool(model.ToolScanner)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, d.StartPath, r.URL.Path)
		require.Equal(t, "octocat/hello-world", r.Header.Get(SubjectHeader))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "octocat/hello-world", req["subjectUrl"])

		json.NewEncoder(w).Encode(StartResponse{TaskID: "t1", Repo: "octocat/hello-world"})
	}))
	defer srv.Close()

	start, err := NewClient(srv.URL).StartScan(context.Background(), d, "octocat/hello-world")
	require.NoError(t, err)
	assert.Equal(t, "t1", start.TaskID)
	assert.Equal(t, "octocat/hello-world", start.Repo)
}

func TestStartScanUnwrapsEnvelope(t *testing.T) {
	d := registry.ForTool(model.ToolScanner)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The whole response body is a JSON-encoded string.
		json.NewEncoder(w).Encode(`{"taskId":"t9"}`)
	}))
	defer srv.Close()

	start, err := NewClient(srv.URL).StartScan(context.Background(), d, "subject")
	require.NoError(t, err)
	assert.Equal(t, "t9", start.TaskID)
}

func TestStartScanMissingTaskID(t *testing.T) {
	d := registry.ForTool(model.ToolScanner)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"repo":"x"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).StartScan(context.Background(), d, "subject")
	assert.Error(t, err)
}

func TestPollLogsCursorEcho(t *testing.T) {
	d := registry.ForTool(model.ToolScanner)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "t1", req["taskId"])
		require.Equal(t, "c3", req["cursor"])
		json.NewEncoder(w).Encode(LogChunk{Lines: []string{"a", "b"}, Cursor: "c4"})
	}))
	defer srv.Close()

	chunk, err := NewClient(srv.URL).PollLogs(context.Background(), d, "t1", "c3")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunk.Lines)
	assert.Equal(t, "c4", chunk.Cursor)
	assert.False(t, chunk.End)
}

func TestFetchResultStatusError(t *testing.T) {
	d := registry.ForTool(model.ToolScanner)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchResult(context.Background(), d, "scanner-results-x.json")
	assert.Error(t, err)
}

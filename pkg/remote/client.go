package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/scanhub/pkg/registry"
)

// SubjectHeader carries the scan subject alongside the request body; some
// gateway deployments route on the header rather than the body.
const SubjectHeader = "X-Scan-Subject"

// Client speaks JSON over HTTP to the scan gateway fronting the external
// tools. All calls take a context; the client itself holds no per-scan
// state.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// StartResponse is the task handle returned by a start call.
type StartResponse struct {
	TaskID    string `json:"taskId"`
	StartedAt string `json:"startedAt,omitempty"`
	Repo      string `json:"repo,omitempty"`
}

// LogChunk is one page of incremental log output. A non-empty Error means
// the remote aborted the stream; no further chunks will follow.
type LogChunk struct {
	Lines  []string `json:"lines"`
	End    bool     `json:"end"`
	Cursor string   `json:"cursor,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// StartScan asks the tool's start endpoint to begin a scan of subject.
// The response may arrive wrapped in an envelope whose body is a
// JSON-encoded string; one level of unwrapping is applied before decoding.
// A response without a task id is a start failure.
func (c *Client) StartScan(ctx context.Context, d registry.Descriptor, subject string) (StartResponse, error) {
	body, err := c.post(ctx, d.StartPath, subject, map[string]string{"subjectUrl": subject})
	if err != nil {
		return StartResponse{}, err
	}

	body = unwrapEnvelope(body)

	var start StartResponse
	if err := json.Unmarshal(body, &start); err != nil {
		return StartResponse{}, fmt.Errorf("start response for %s not decodable: %w", d.Tool, err)
	}
	if start.TaskID == "" {
		return StartResponse{}, fmt.Errorf("start response for %s carried no task id", d.Tool)
	}
	return start, nil
}

// PollLogs fetches the next chunk of log lines for a task. An empty
// cursor requests the stream from the beginning.
func (c *Client) PollLogs(ctx context.Context, d registry.Descriptor, taskID, cursor string) (LogChunk, error) {
	req := map[string]string{"taskId": taskID}
	if cursor != "" {
		req["cursor"] = cursor
	}
	body, err := c.post(ctx, d.LogsPath, "", req)
	if err != nil {
		return LogChunk{}, err
	}

	var chunk LogChunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return LogChunk{}, fmt.Errorf("log chunk for %s not decodable: %w", d.Tool, err)
	}
	return chunk, nil
}

// FetchResult retrieves the raw result payload named by a completion
// marker. The shape of the payload is tool-specific; the caller hands it
// to the adapter's normalizer.
func (c *Client) FetchResult(ctx context.Context, d registry.Descriptor, filename string) ([]byte, error) {
	return c.post(ctx, d.ResultPath, "", map[string]string{"filename": filename})
}

func (c *Client) post(ctx context.Context, path, subject string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set(SubjectHeader, subject)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %s", path, resp.Status)
	}
	return body, nil
}

// unwrapEnvelope undoes one level of JSON-string wrapping: some gateway
// revisions return `"{\"taskId\":...}"` instead of the bare object.
func unwrapEnvelope(body []byte) []byte {
	var inner string
	if err := json.Unmarshal(body, &inner); err == nil {
		return []byte(inner)
	}
	return body
}

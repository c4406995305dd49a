package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/scanhub/pkg/model"
	"github.com/user/scanhub/pkg/registry"
	"github.com/user/scanhub/pkg/remote"
	"github.com/user/scanhub/pkg/session"
	"github.com/user/scanhub/pkg/store"
)

const scannerPayload = `{"runs":[{"tool":{"driver":{"name":"sast","rules":[]}},"results":[
	{"ruleId":"G401","level":"error","message":{"text":"weak hash"},
	 "locations":[{"physicalLocation":{"artifactLocation":{"uri":"h.go"},"region":{"startLine":3}}}]}
]}]}`

// fakeGateway scripts the remote side of one scanner run: a fixed start
// response, a sequence of log chunks, and a result payload.
type fakeGateway struct {
	t          *testing.T
	mu         sync.Mutex
	chunks     []remote.LogChunk
	next       int
	startCode  int
	resultCode int
	fetches    int
	cursors    []string
	payload    string
}

func (g *fakeGateway) handler() http.Handler {
	d := registry.ForTool(model.ToolScanner)
	mux := http.NewServeMux()
	mux.HandleFunc(d.StartPath, func(w http.ResponseWriter, r *http.Request) {
		if g.startCode != 0 {
			http.Error(w, "start refused", g.startCode)
			return
		}
		json.NewEncoder(w).Encode(remote.StartResponse{TaskID: "t1", Repo: "octocat/hello-world"})
	})
	mux.HandleFunc(d.LogsPath, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)

		g.mu.Lock()
		g.cursors = append(g.cursors, req["cursor"])
		var chunk remote.LogChunk
		if g.next < len(g.chunks) {
			chunk = g.chunks[g.next]
			g.next++
		} else {
			chunk = remote.LogChunk{End: true}
		}
		g.mu.Unlock()

		if chunk.Cursor == "poll-error" {
			http.Error(w, "gateway hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(chunk)
	})
	mux.HandleFunc(d.ResultPath, func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.fetches++
		g.mu.Unlock()
		if g.resultCode != 0 {
			http.Error(w, "result unavailable", g.resultCode)
			return
		}
		w.Write([]byte(g.payload))
	})
	return mux
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

type recordingEnricher struct {
	mu      sync.Mutex
	batches [][]model.Record
}

func (e *recordingEnricher) Enrich(ctx context.Context, records []model.Record) {
	e.mu.Lock()
	e.batches = append(e.batches, records)
	e.mu.Unlock()
}

func newEngine(t *testing.T, g *fakeGateway, enricher Enricher) (*Engine, *store.Store, *session.Manager) {
	t.Helper()
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)
	st := store.New()
	sm := session.NewManager()
	return New(remote.NewClient(srv.URL), st, sm, enricher, 5*time.Millisecond), st, sm
}

const markerLine = "done: scanner-results-octocat-hello-world-20240101T000000Z.json"

func TestRunScenario(t *testing.T) {
	g := &fakeGateway{t: t, payload: scannerPayload, chunks: []remote.LogChunk{
		{Lines: []string{markerLine}, End: true, Cursor: "c9"},
	}}
	enricher := &recordingEnricher{}
	eng, st, sm := newEngine(t, g, enricher)

	var phases []session.Phase
	sm.For(model.ToolScanner).Subscribe(func(s session.Snapshot) { phases = append(phases, s.Phase) })

	err := eng.Run(context.Background(), model.ToolScanner, "octocat/hello-world")
	require.NoError(t, err)
	eng.WaitEnrichment()

	assert.Equal(t, 1, g.fetchCount())
	assert.Equal(t, 1, st.Len())
	assert.Contains(t, phases, session.PhaseStarting)
	assert.Contains(t, phases, session.PhaseScanning)
	assert.Equal(t, session.PhaseCompleted, phases[len(phases)-1])

	// Enrichment saw the merged records.
	enricher.mu.Lock()
	defer enricher.mu.Unlock()
	require.Len(t, enricher.batches, 1)
	assert.Equal(t, "G401", enricher.batches[0][0].RuleID)
}

func TestCompletionMarkerSingleFire(t *testing.T) {
	// The same matching line arrives in two chunks; at-least-once delivery
	// must still trigger exactly one fetch.
	g := &fakeGateway{t: t, payload: scannerPayload, chunks: []remote.LogChunk{
		{Lines: []string{markerLine}, Cursor: "c1"},
		{Lines: []string{markerLine}, Cursor: "c2"},
		{End: true, Cursor: "c3"},
	}}
	eng, _, _ := newEngine(t, g, nil)

	require.NoError(t, eng.Run(context.Background(), model.ToolScanner, "octocat/hello-world"))
	assert.Equal(t, 1, g.fetchCount())
}

func TestCursorAdvancesAndSurvivesOmission(t *testing.T) {
	g := &fakeGateway{t: t, payload: scannerPayload, chunks: []remote.LogChunk{
		{Lines: []string{"line 1"}, Cursor: "c1"},
		{Lines: []string{"line 2"}}, // server omits the cursor
		{End: true},
	}}
	eng, _, _ := newEngine(t, g, nil)
	require.NoError(t, eng.Run(context.Background(), model.ToolScanner, "subject"))

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.cursors, 3)
	assert.Equal(t, "", g.cursors[0])
	assert.Equal(t, "c1", g.cursors[1])
	// Prior cursor preserved when the server omitted one.
	assert.Equal(t, "c1", g.cursors[2])
}

func TestStartFailure(t *testing.T) {
	g := &fakeGateway{t: t, startCode: http.StatusInternalServerError}
	eng, _, sm := newEngine(t, g, nil)

	err := eng.Run(context.Background(), model.ToolScanner, "subject")
	require.Error(t, err)
	assert.Equal(t, session.PhaseError, sm.For(model.ToolScanner).Snapshot().Phase)
	// No polling began, so no fetch either.
	assert.Equal(t, 0, g.fetchCount())
}

func TestTransientPollFailureContinues(t *testing.T) {
	g := &fakeGateway{t: t, payload: scannerPayload, chunks: []remote.LogChunk{
		{Cursor: "poll-error"}, // scripted HTTP 502
		{Lines: []string{markerLine}, End: true, Cursor: "c2"},
	}}
	eng, st, sm := newEngine(t, g, nil)

	require.NoError(t, eng.Run(context.Background(), model.ToolScanner, "subject"))
	assert.Equal(t, 1, st.Len())
	snap := sm.For(model.ToolScanner).Snapshot()
	assert.Equal(t, session.PhaseCompleted, snap.Phase)
}

func TestResultFetchFailureDoesNotAbortStream(t *testing.T) {
	g := &fakeGateway{t: t, resultCode: http.StatusNotFound, chunks: []remote.LogChunk{
		{Lines: []string{markerLine}, Cursor: "c1"},
		{End: true, Cursor: "c2"},
	}}
	eng, st, sm := newEngine(t, g, nil)

	require.NoError(t, eng.Run(context.Background(), model.ToolScanner, "subject"))
	assert.Equal(t, 0, st.Len())
	snap := sm.For(model.ToolScanner).Snapshot()
	// The failed marker is reported, but the stream's own end still wins.
	assert.Equal(t, session.PhaseCompleted, snap.Phase)
	joined := ""
	for _, ev := range snap.Events {
		joined += ev + "\n"
	}
	assert.Contains(t, joined, "result fetch failed")
}

func TestStreamErrorFailsSession(t *testing.T) {
	g := &fakeGateway{t: t, chunks: []remote.LogChunk{
		{Lines: []string{"starting up"}, Cursor: "c1"},
		{Error: "runner evicted"},
	}}
	eng, _, sm := newEngine(t, g, nil)

	err := eng.Run(context.Background(), model.ToolScanner, "subject")
	require.Error(t, err)
	assert.Equal(t, session.PhaseError, sm.For(model.ToolScanner).Snapshot().Phase)
}

func TestLogBufferPrefixesTools(t *testing.T) {
	b := NewLogBuffer()
	b.Append(model.ToolScanner, "alpha")
	b.Append(model.ToolCompliance, "beta")

	lines := b.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "[scanner] alpha", lines[0])
	assert.Equal(t, "[compliance] beta", lines[1])
	assert.Equal(t, []string{"[compliance] beta"}, b.Tail(1))
}

func TestConcurrentToolsIndependentCancellation(t *testing.T) {
	// Scanner runs to completion while the pipeline loop is cancelled
	// mid-stream; the scanner must be unaffected.
	g := &fakeGateway{t: t, payload: scannerPayload, chunks: []remote.LogChunk{
		{Lines: []string{markerLine}, End: true, Cursor: "c1"},
	}}
	srvScanner := httptest.NewServer(g.handler())
	t.Cleanup(srvScanner.Close)

	pipelineMux := http.NewServeMux()
	d := registry.ForTool(model.ToolPipeline)
	pipelineMux.HandleFunc(d.StartPath, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remote.StartResponse{TaskID: "t2"})
	})
	pipelineMux.HandleFunc(d.LogsPath, func(w http.ResponseWriter, r *http.Request) {
		// Never ends.
		json.NewEncoder(w).Encode(remote.LogChunk{Lines: []string{"still running"}})
	})
	srvPipeline := httptest.NewServer(pipelineMux)
	t.Cleanup(srvPipeline.Close)

	st := store.New()
	sm := session.NewManager()
	scanEng := New(remote.NewClient(srvScanner.URL), st, sm, nil, 5*time.Millisecond)
	pipeEng := New(remote.NewClient(srvPipeline.URL), st, sm, nil, 5*time.Millisecond)

	pipeCtx, cancelPipe := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeEng.Run(pipeCtx, model.ToolPipeline, "subject")
	}()

	require.NoError(t, scanEng.Run(context.Background(), model.ToolScanner, "subject"))
	cancelPipe()
	wg.Wait()

	assert.Equal(t, session.PhaseCompleted, sm.For(model.ToolScanner).Snapshot().Phase)
	assert.Equal(t, 1, st.Len())
}

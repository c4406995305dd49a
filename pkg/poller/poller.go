package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/scanhub/pkg/logging"
	"github.com/user/scanhub/pkg/model"
	"github.com/user/scanhub/pkg/registry"
	"github.com/user/scanhub/pkg/remote"
	"github.com/user/scanhub/pkg/session"
	"github.com/user/scanhub/pkg/store"
)

// Enricher annotates freshly merged records in the background. Enrichment
// failure never reaches the polling loop.
type Enricher interface {
	Enrich(ctx context.Context, records []model.Record)
}

// Engine runs one polling loop per (task, tool). Loops are independent:
// each has its own cursor, its own completion marker and its own session,
// and failures local to one never touch the others.
type Engine struct {
	client   *remote.Client
	store    *store.Store
	sessions *session.Manager
	enricher Enricher
	interval time.Duration
	logs     *LogBuffer
	log      *zap.SugaredLogger

	enrichWG sync.WaitGroup
}

func New(client *remote.Client, st *store.Store, sessions *session.Manager, enricher Enricher, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &Engine{
		client:   client,
		store:    st,
		sessions: sessions,
		enricher: enricher,
		interval: interval,
		logs:     NewLogBuffer(),
		log:      logging.L(),
	}
}

// Logs exposes the shared, tool-prefixed log buffer.
func (e *Engine) Logs() *LogBuffer {
	return e.logs
}

// WaitEnrichment blocks until every background enrichment task launched
// by this engine has finished.
func (e *Engine) WaitEnrichment() {
	e.enrichWG.Wait()
}

// Run starts a scan of subject with one tool and polls its log stream to
// completion. The first poll happens immediately, then on a fixed
// interval. Returns when the remote signals end of stream, the stream
// errors, or ctx is cancelled; concurrent Runs for other tools are
// unaffected either way.
func (e *Engine) Run(ctx context.Context, tool model.ToolKind, subject string) error {
	d := registry.ForTool(tool)
	sess := e.sessions.For(tool)

	sess.Starting(subject)
	start, err := e.client.StartScan(ctx, d, subject)
	if err != nil {
		err = fmt.Errorf("start %s scan: %w", tool, err)
		sess.Fail(err)
		return err
	}
	sess.Scanning(start.TaskID, start.Repo)
	e.log.Infow("scan started", "tool", tool, "task", start.TaskID, "subject", subject)

	var (
		cursor  string
		fetched bool
	)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		chunk, err := e.client.PollLogs(ctx, d, start.TaskID, cursor)
		switch {
		case err != nil && ctx.Err() != nil:
			sess.Report("polling stopped: %v", ctx.Err())
			return ctx.Err()
		case err != nil:
			// Transient: report and keep the loop's own schedule going.
			e.log.Warnw("poll failed", "tool", tool, "task", start.TaskID, "error", err)
			sess.Report("poll failed: %v", err)
		default:
			if chunk.Cursor != "" {
				// Keep the prior cursor when the server omits one so the
				// stream position is never lost.
				cursor = chunk.Cursor
			}
			for _, line := range chunk.Lines {
				e.logs.Append(tool, line)
				if fetched {
					continue
				}
				if marker := d.CompletionPattern.FindString(line); marker != "" {
					// First match only: re-delivered lines under
					// at-least-once log semantics must not refetch.
					fetched = true
					e.collectResult(ctx, d, sess, marker)
				}
			}
			if chunk.Error != "" {
				err := fmt.Errorf("%s log stream aborted: %s", tool, chunk.Error)
				sess.Fail(err)
				return err
			}
			if chunk.End {
				sess.Completed()
				e.log.Infow("scan finished", "tool", tool, "task", start.TaskID)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			sess.Report("polling stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// collectResult fetches and normalizes the payload named by a detected
// completion marker, merges it into the store, and hands the records to
// the enricher without blocking the polling loop. A failure here is
// terminal for this marker only.
func (e *Engine) collectResult(ctx context.Context, d registry.Descriptor, sess *session.Session, marker string) {
	payload, err := e.client.FetchResult(ctx, d, marker)
	if err != nil {
		e.log.Errorw("result fetch failed", "tool", d.Tool, "marker", marker, "error", err)
		sess.Report("result fetch failed for %s: %v", marker, err)
		return
	}

	records, err := d.Normalize(payload, d.Tool)
	if err != nil {
		// Unrecognized shapes degrade, they do not abort the scan.
		e.log.Warnw("result payload not normalizable", "tool", d.Tool, "marker", marker, "error", err)
		sess.Report("result payload for %s not normalizable: %v", marker, err)
		return
	}
	if len(records) == 0 {
		sess.Report("result %s contained no findings", marker)
		return
	}

	e.store.Add(records)
	sess.Report("merged %d findings from %s", len(records), marker)

	if e.enricher == nil {
		return
	}
	// Fire and forget: enrichment runs detached from the polling loop's
	// lifetime and must not delay or fail the scan's own completion.
	enrichCtx := context.WithoutCancel(ctx)
	e.enrichWG.Add(1)
	go func() {
		defer e.enrichWG.Done()
		e.enricher.Enrich(enrichCtx, records)
	}()
}

package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/user/scanhub/pkg/logging"
	"github.com/user/scanhub/pkg/model"
	"github.com/user/scanhub/pkg/store"
)

// Truncation caps applied before a batch leaves the process; they bound
// prompt size and keep raw tool payloads from reaching a third party.
const (
	maxMessageLen = 400
	maxSnippetLen = 200
)

// promptRecord is the sanitized projection of a canonical record that is
// allowed to reach the completion service. Raw is deliberately absent.
type promptRecord struct {
	ID       string `json:"id"`
	Tool     string `json:"tool"`
	RuleID   string `json:"ruleId"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// Engine invokes the completion service for a batch of records and merges
// the enrichment tuples back into the store by id. Every failure is
// swallowed at this boundary: the scan's own completion never depends on
// enrichment succeeding.
type Engine struct {
	mu       sync.RWMutex
	provider Provider
	store    *store.Store
	log      *zap.SugaredLogger
}

func New(provider Provider, st *store.Store) *Engine {
	return &Engine{provider: provider, store: st, log: logging.L()}
}

// SetProvider swaps the completion provider. In-flight batches keep the
// provider they started with; later batches use the new one. Used by the
// config hot-reload path.
func (e *Engine) SetProvider(p Provider) {
	e.mu.Lock()
	e.provider = p
	e.mu.Unlock()
}

func (e *Engine) currentProvider() Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider
}

// Enrich annotates one batch. Records absent from the response (dropped
// or mis-rendered by the model) keep their pre-enrichment state.
func (e *Engine) Enrich(ctx context.Context, records []model.Record) {
	provider := e.currentProvider()
	if provider == nil || len(records) == 0 {
		return
	}

	prompt, err := BuildPrompt(records)
	if err != nil {
		e.log.Warnw("enrichment prompt build failed", "error", err)
		return
	}

	text, err := complete(ctx, provider, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		e.log.Warnw("enrichment call failed", "error", err)
		return
	}

	rows := ParseRows(text)
	if len(rows) == 0 {
		e.log.Warnw("enrichment response not parseable, keeping records unenriched", "records", len(records))
		return
	}
	e.Merge(rows)
}

// Merge applies enrichment rows to the store. Rows naming an id the store
// has never seen are skipped: the model invented or mangled them.
func (e *Engine) Merge(rows []Row) {
	var updates []model.Record
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if _, ok := e.store.Get(row.ID); !ok {
			e.log.Debugw("enrichment row for unknown record skipped", "id", row.ID)
			continue
		}
		upd := model.Record{
			ID: row.ID,
			Enrichment: &model.Enrichment{
				Explanation: row.Explanation,
				Remediation: row.Remediation,
			},
		}
		if sev := model.Severity(strings.ToLower(strings.TrimSpace(row.Severity))); row.Severity != "" &&
			model.ValidSeverity(sev) && sev != model.SevUnknown {
			upd.Severity = sev
		}
		updates = append(updates, upd)
	}
	if len(updates) > 0 {
		e.store.Add(updates)
	}
}

// BuildPrompt renders the instruction block plus the sanitized batch.
func BuildPrompt(records []model.Record) (string, error) {
	batch := Sanitize(records)
	data, err := json.Marshal(batch)
	if err != nil {
		return "", err
	}
	return GetEnrichPrompt() + string(data), nil
}

// Sanitize projects records onto the prompt shape: message and snippet
// truncated to fixed caps, raw payload dropped.
func Sanitize(records []model.Record) []promptRecord {
	out := make([]promptRecord, 0, len(records))
	for _, rec := range records {
		pr := promptRecord{
			ID:       rec.ID,
			Tool:     string(rec.Tool),
			RuleID:   rec.RuleID,
			Title:    rec.Title,
			Message:  truncate(rec.Message, maxMessageLen),
			Severity: string(rec.Severity),
		}
		if rec.Location != nil {
			pr.File = rec.Location.File
			pr.Line = rec.Location.Line
			pr.Snippet = truncate(rec.Location.Snippet, maxSnippetLen)
		}
		out = append(out, pr)
	}
	return out
}

// complete runs one turn against the provider, using the streaming path
// when the provider offers one so a slow completion can still be
// cancelled between deltas.
func complete(ctx context.Context, p Provider, history []Message) (string, error) {
	if s, ok := p.(Streamer); ok {
		var sb strings.Builder
		if err := s.Stream(ctx, history, func(delta string) {
			sb.WriteString(delta)
		}); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
	return p.Complete(ctx, history)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

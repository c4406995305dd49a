package store

import (
	"sort"
	"sync"

	"github.com/user/scanhub/pkg/model"
)

// Store is the process-wide findings container. All mutation happens under
// one mutex so concurrent pollers and the enrichment engine never observe
// a half-applied merge. Append-only at the API level: records leave only
// via an explicit Clear.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

func New() *Store {
	return &Store{records: make(map[string]model.Record)}
}

// Add merges records by id. An unknown id is an insert; a known id is a
// shallow merge where set incoming fields win and everything else is
// preserved. The tool kind is immutable once set. Merging is idempotent
// and commutative for disjoint id sets.
func (s *Store) Add(records []model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		existing, ok := s.records[rec.ID]
		if !ok {
			s.records[rec.ID] = rec
			continue
		}
		s.records[rec.ID] = merge(existing, rec)
	}
}

func merge(existing, incoming model.Record) model.Record {
	out := existing
	if incoming.RuleID != "" {
		out.RuleID = incoming.RuleID
	}
	if incoming.Title != "" {
		out.Title = incoming.Title
	}
	if incoming.Message != "" {
		out.Message = incoming.Message
	}
	if incoming.Severity != "" && incoming.Severity != model.SevUnknown {
		out.Severity = incoming.Severity
	}
	if incoming.Location != nil {
		out.Location = incoming.Location
	}
	if incoming.Enrichment != nil {
		out.Enrichment = incoming.Enrichment
	}
	if incoming.Raw != nil {
		out.Raw = incoming.Raw
	}
	return out
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// All returns a copy of every record. No ordering is guaranteed.
func (s *Store) All() []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// ByTool returns a copy of the records produced by one tool.
func (s *Store) ByTool(kind model.ToolKind) []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Record
	for _, rec := range s.records {
		if rec.Tool == kind {
			out = append(out, rec)
		}
	}
	return out
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes every record, or only one tool's records when kinds are
// given. This is the only way records leave the store.
func (s *Store) Clear(kinds ...model.ToolKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(kinds) == 0 {
		s.records = make(map[string]model.Record)
		return
	}
	for id, rec := range s.records {
		for _, k := range kinds {
			if rec.Tool == k {
				delete(s.records, id)
				break
			}
		}
	}
}

// SortBySeverity orders records most severe first, then by rule id, then
// id for a stable output. Consumers needing order sort explicitly; the
// store itself promises none.
func SortBySeverity(records []model.Record) {
	sort.Slice(records, func(i, j int) bool {
		ri, rj := model.SeverityRank(records[i].Severity), model.SeverityRank(records[j].Severity)
		if ri != rj {
			return ri < rj
		}
		if records[i].RuleID != records[j].RuleID {
			return records[i].RuleID < records[j].RuleID
		}
		return records[i].ID < records[j].ID
	})
}

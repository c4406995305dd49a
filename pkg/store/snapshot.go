package store

import (
	"encoding/json"
	"os"

	"github.com/user/scanhub/pkg/model"
)

const DefaultSnapshotPath = ".scanhub-snapshot.json"

// SnapshotDiff classifies the current findings against a baseline by id.
type SnapshotDiff struct {
	New       []model.Record
	Fixed     []model.Record
	Unchanged []model.Record
}

// SaveSnapshot writes the current findings as JSON for later comparison.
func (s *Store) SaveSnapshot(path string) error {
	records := s.All()
	SortBySeverity(records)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSnapshot replaces the store contents with a previously saved file.
func (s *Store) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	s.Clear()
	s.Add(records)
	return nil
}

// CompareSnapshot diffs the current findings against a baseline store.
func (s *Store) CompareSnapshot(baseline *Store) SnapshotDiff {
	var diff SnapshotDiff
	for _, rec := range s.All() {
		if _, ok := baseline.Get(rec.ID); ok {
			diff.Unchanged = append(diff.Unchanged, rec)
		} else {
			diff.New = append(diff.New, rec)
		}
	}
	for _, rec := range baseline.All() {
		if _, ok := s.Get(rec.ID); !ok {
			diff.Fixed = append(diff.Fixed, rec)
		}
	}
	SortBySeverity(diff.New)
	SortBySeverity(diff.Fixed)
	SortBySeverity(diff.Unchanged)
	return diff
}

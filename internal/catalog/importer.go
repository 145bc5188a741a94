package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdc-engine/ramka/internal/storage"
)

// Importer loads authored case JSON files into the catalog.
//
// Every file must carry a non-empty case_id. Presentation fields fall back
// to defaults so minimal case documents stay importable: title defaults to
// the case id, method to CBT, difficulty to 1, tags to an empty list. The
// whole document is stored as the case payload.
type Importer struct {
	cases storage.CaseStore
}

// NewImporter wires the importer to its store.
func NewImporter(cases storage.CaseStore) (*Importer, error) {
	if cases == nil {
		return nil, fmt.Errorf("case store is required")
	}
	return &Importer{cases: cases}, nil
}

// ImportDir upserts every *.json case document under dir and returns the
// number of imported cases. A single invalid document fails the whole run
// so seeding stays all-or-nothing per file list.
func (imp *Importer) ImportDir(ctx context.Context, dir string) (int, error) {
	if imp == nil || imp.cases == nil {
		return 0, fmt.Errorf("importer is not configured")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return 0, fmt.Errorf("cases directory is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read cases directory: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		record, err := loadCaseFile(path)
		if err != nil {
			return imported, fmt.Errorf("case file %s: %w", entry.Name(), err)
		}
		if err := imp.cases.UpsertCase(ctx, record); err != nil {
			return imported, fmt.Errorf("upsert case %s: %w", record.ID, err)
		}
		imported++
	}
	return imported, nil
}

func loadCaseFile(path string) (storage.CaseRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return storage.CaseRecord{}, fmt.Errorf("read file: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return storage.CaseRecord{}, fmt.Errorf("parse json: %w", err)
	}

	caseID, _ := payload["case_id"].(string)
	if strings.TrimSpace(caseID) == "" {
		return storage.CaseRecord{}, fmt.Errorf("missing or invalid case_id")
	}

	record := storage.CaseRecord{
		ID:         caseID,
		Title:      caseID,
		Method:     "CBT",
		Difficulty: 1,
		Tags:       []string{},
		Payload:    payload,
	}
	if title, ok := payload["title"].(string); ok {
		record.Title = title
	}
	if method, ok := payload["method"].(string); ok {
		record.Method = method
	}
	if difficulty, ok := payload["difficulty"].(float64); ok {
		record.Difficulty = int(difficulty)
	}
	if rawTags, ok := payload["tags"].([]any); ok {
		for _, rawTag := range rawTags {
			if tag, ok := rawTag.(string); ok {
				record.Tags = append(record.Tags, tag)
			}
		}
	}
	return record, nil
}

// Package catalog exposes the scripted case library sessions are run
// against. Cases are authored as JSON documents and imported into storage;
// the service only reads them.
package catalog

import (
	"context"
	"errors"
	"fmt"

	platformerrors "github.com/mdc-engine/ramka/internal/platform/errors"
	"github.com/mdc-engine/ramka/internal/storage"
)

// Case is one entry of the case library. Payload holds the full authored
// document, including the stage arc and the initial case state.
type Case struct {
	ID         string
	Title      string
	Method     string
	Difficulty int
	Tags       []string
	Payload    map[string]any
}

// Service reads the case library.
type Service struct {
	cases storage.CaseStore
}

// NewService wires the catalog service to its store.
func NewService(cases storage.CaseStore) (*Service, error) {
	if cases == nil {
		return nil, fmt.Errorf("case store is required")
	}
	return &Service{cases: cases}, nil
}

// Get returns one case by id.
func (s *Service) Get(ctx context.Context, id string) (Case, error) {
	if s == nil || s.cases == nil {
		return Case{}, platformerrors.New(platformerrors.CodeInternal, "catalog service is not configured")
	}
	record, err := s.cases.GetCase(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Case{}, platformerrors.WithMetadata(platformerrors.CodeCaseNotFound, "case not found", map[string]string{"case_id": id})
		}
		return Case{}, platformerrors.Wrap(platformerrors.CodeInternal, "load case", err)
	}
	return fromRecord(record), nil
}

// List returns all cases ordered by id.
func (s *Service) List(ctx context.Context) ([]Case, error) {
	if s == nil || s.cases == nil {
		return nil, platformerrors.New(platformerrors.CodeInternal, "catalog service is not configured")
	}
	records, err := s.cases.ListCases(ctx)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeInternal, "list cases", err)
	}
	cases := make([]Case, 0, len(records))
	for _, record := range records {
		cases = append(cases, fromRecord(record))
	}
	return cases, nil
}

func fromRecord(record storage.CaseRecord) Case {
	return Case{
		ID:         record.ID,
		Title:      record.Title,
		Method:     record.Method,
		Difficulty: record.Difficulty,
		Tags:       record.Tags,
		Payload:    record.Payload,
	}
}

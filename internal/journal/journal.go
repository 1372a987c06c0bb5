// Package journal records the outcome of every facility submission so that
// siblings created by a partially failed request can be reconciled later.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

// Entry is one submission outcome.
type Entry struct {
	ID                 string                  `json:"id"`
	RequestID          string                  `json:"requestId,omitempty"`
	FacilityIdentifier string                  `json:"facilityIdentifier"`
	Operation          string                  `json:"operation"`
	State              string                  `json:"state"`
	Created            []Created               `json:"created"`
	Failures           []model.ValidationError `json:"failures"`
	RecordedAt         time.Time               `json:"recordedAt"`
}

// Created is an entity the provider accepted.
type Created struct {
	EntityName string `json:"entityName"`
	Index      int    `json:"index"`
	Identifier string `json:"identifier"`
}

// Journal stores entries.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, facilityID string) ([]Entry, error)
}

// Stamp fills ID and RecordedAt when they are unset.
func Stamp(e Entry, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = now.UTC()
	}
	return e
}

// Memory is an in-process Journal. Entries are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory returns an empty Memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, e Entry) error {
	e = Stamp(e, time.Now())

	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

// List returns the entries for facilityID, oldest first.
func (m *Memory) List(_ context.Context, facilityID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Entry{}
	for _, e := range m.entries {
		if e.FacilityIdentifier == facilityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

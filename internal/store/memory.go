/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"sync"

	"github.com/visarlabs/visar/internal/models"
)

// MemoryStateStore is an in-process StateStore with the same
// compare-and-swap contract as the database-backed one.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]models.RotationState
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.RotationState)}
}

// Load returns the stored state and whether one exists.
func (m *MemoryStateStore) Load(_ context.Context, contentItemID string) (models.RotationState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[contentItemID]
	return st, ok, nil
}

// CompareAndSwap applies next if the stored version matches.
func (m *MemoryStateStore) CompareAndSwap(_ context.Context, expectedVersion int64, next models.RotationState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.states[next.ContentItemID]
	if expectedVersion == 0 {
		if exists {
			return false, nil
		}
		m.states[next.ContentItemID] = cloneState(next)
		return true, nil
	}
	if !exists || current.Version != expectedVersion {
		return false, nil
	}
	m.states[next.ContentItemID] = cloneState(next)
	return true, nil
}

func cloneState(st models.RotationState) models.RotationState {
	if st.History != nil {
		st.History = append([]models.DrawRecord(nil), st.History...)
	}
	return st
}

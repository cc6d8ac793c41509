// Package store provides MissionStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/cadrimil/engine/diaria"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	missions map[diaria.MissionID]diaria.Mission
}

func NewMemory() *Memory {
	return &Memory{
		missions: make(map[diaria.MissionID]diaria.Mission),
	}
}

var _ diaria.MissionStore = (*Memory)(nil)

func (m *Memory) List(_ context.Context) ([]diaria.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]diaria.Mission, 0, len(m.missions))
	for _, mission := range m.missions {
		result = append(result, mission.Clone())
	}
	diaria.SortNewestFirst(result)
	return result, nil
}

func (m *Memory) Get(_ context.Context, id diaria.MissionID) (diaria.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mission, ok := m.missions[id]
	if !ok {
		return diaria.Mission{}, diaria.ErrMissionNotFound
	}
	return mission.Clone(), nil
}

// Save upserts by id. Last write wins.
func (m *Memory) Save(_ context.Context, mission diaria.Mission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions[mission.ID] = mission.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id diaria.MissionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.missions, id)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions = make(map[diaria.MissionID]diaria.Mission)
	return nil
}

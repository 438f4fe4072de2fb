package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"printlyapi/models"
	"printlyapi/planner"

	"gorm.io/gorm"
)

// ErrSessionNotFound means no design session exists under the given key.
var ErrSessionNotFound = errors.New("design session not found")

// PlanStore owns all mutation of the per-session design plan. Sessions persist
// in the database; the store adds a per-session-key mutex so concurrent merges
// for the same session serialize instead of interleaving half-applied deltas.
// The database handle is passed per call, so API handlers and worker tasks
// share one lock map while keeping their own connections.
type PlanStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPlanStore() *PlanStore {
	return &PlanStore{
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one session key, creating it on first
// use. Lock entries are never evicted; a session key is a few dozen bytes.
func (s *PlanStore) lockFor(sessionKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionKey] = lock
	}
	return lock
}

// Load fetches a session and its deserialized plan.
func (s *PlanStore) Load(db *gorm.DB, sessionKey string) (*models.DesignSession, planner.DesignPlan, error) {
	var session models.DesignSession
	result := db.Where("session_key = ?", sessionKey).First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, planner.DesignPlan{}, ErrSessionNotFound
		}
		return nil, planner.DesignPlan{}, result.Error
	}

	plan, err := decodePlan(session.PlanJSON)
	if err != nil {
		return nil, planner.DesignPlan{}, err
	}
	return &session, plan, nil
}

// Merge applies a delta to the session's plan atomically and returns the
// merged plan. Merges for the same key never interleave; merges for different
// keys run in parallel.
func (s *PlanStore) Merge(db *gorm.DB, sessionKey string, delta planner.PlanDelta) (planner.DesignPlan, error) {
	lock := s.lockFor(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	session, plan, err := s.Load(db, sessionKey)
	if err != nil {
		return planner.DesignPlan{}, err
	}

	merged := planner.Merge(plan, delta)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return planner.DesignPlan{}, fmt.Errorf("failed to encode plan: %v", err)
	}

	result := db.Model(&models.DesignSession{}).Where("id = ?", session.ID).
		Update("plan_json", string(encoded))
	if result.Error != nil {
		return planner.DesignPlan{}, result.Error
	}
	return merged, nil
}

func decodePlan(planJSON string) (planner.DesignPlan, error) {
	if planJSON == "" {
		return planner.DesignPlan{}, nil
	}
	var plan planner.DesignPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return planner.DesignPlan{}, fmt.Errorf("failed to decode stored plan: %v", err)
	}
	return plan, nil
}

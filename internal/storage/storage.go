// Package storage keeps the in-memory annotation sessions of the label server.
package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dataset-m/dsm/internal/models"
)

type SessionStore struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
	}
}

// Create starts a session in mode, defaulting to rectangle
func (s *SessionStore) Create(mode models.AnnotationMode) *models.Session {
	if mode == "" {
		mode = models.ModeRectangle
	}
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Set(session)
	return session
}

// Get returns a copy of the session so callers cannot race on it
func (s *SessionStore) Get(sessionID string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return models.Session{}, false
	}
	return *session, true
}

func (s *SessionStore) Set(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Update applies fn to the stored session under the write lock
func (s *SessionStore) Update(sessionID string, fn func(*models.Session)) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return models.Session{}, false
	}
	fn(session)
	session.UpdatedAt = time.Now()
	return *session, true
}

// GetAll returns all sessions, oldest first
func (s *SessionStore) GetAll() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

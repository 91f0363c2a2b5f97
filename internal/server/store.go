package server

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ronaldod-hc/legendas-app/internal/editor"
	"github.com/ronaldod-hc/legendas-app/internal/logging"
)

// one uploaded media file and its editing session
type entry struct {
	session    *editor.Session
	uploadPath string
}

// sessionStore keeps the most recently used sessions. Evicted or removed
// sessions take their upload with them.
type sessionStore struct {
	cache *lru.Cache[string, *entry]
}

func newSessionStore(size int, logger *logging.Logger) (*sessionStore, error) {
	cache, err := lru.NewWithEvict(size, func(id string, e *entry) {
		if err := os.Remove(e.uploadPath); err != nil && !os.IsNotExist(err) {
			logger.Warnw("failed to remove upload", "session", id, "path", e.uploadPath, "error", err)
			return
		}
		logger.Debugw("session dropped", "session", id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	return &sessionStore{cache: cache}, nil
}

func (s *sessionStore) add(e *entry) string {
	id := uuid.NewString()
	s.cache.Add(id, e)
	return id
}

func (s *sessionStore) get(id string) (*entry, bool) {
	return s.cache.Get(id)
}

func (s *sessionStore) remove(id string) bool {
	return s.cache.Remove(id)
}

func (s *sessionStore) len() int {
	return s.cache.Len()
}

// purge drops every session.
func (s *sessionStore) purge() {
	s.cache.Purge()
}

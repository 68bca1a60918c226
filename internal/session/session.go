// Package session keeps the per-process record of active downloads and the stop requests made against them
package session

import (
	"sort"
	"sync"

	"ariadm/pkg/models"

	"github.com/patrickmn/go-cache"
)

// Entry is the session state of one active gid
type Entry struct {
	Status   models.DownloadStatus
	Shutdown bool
}

// Store is an in-memory record that is never persisted. It starts empty on every process start.
type Store struct {
	mu         sync.Mutex
	gids       *cache.Cache
	categories *cache.Cache
}

// New creates an empty session store
func New() *Store {
	return &Store{
		gids:       cache.New(cache.NoExpiration, 0),
		categories: cache.New(cache.NoExpiration, 0),
	}
}

// AddGID registers gid as active with the given status and no pending stop request
func (s *Store) AddGID(gid string, status models.DownloadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gids.Set(gid, Entry{Status: status}, cache.NoExpiration)
}

// SetStatus updates the status of an active gid. Unknown gids are ignored.
func (s *Store) SetStatus(gid string, status models.DownloadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entry(gid)
	if !ok {
		return
	}
	entry.Status = status
	s.gids.Set(gid, entry, cache.NoExpiration)
}

// RequestShutdown flags gid so that a gate waiting on it stops at its next wake
func (s *Store) RequestShutdown(gid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entry(gid)
	if !ok {
		return
	}
	entry.Shutdown = true
	s.gids.Set(gid, entry, cache.NoExpiration)
}

// ShutdownRequested reports whether a stop was requested for gid
func (s *Store) ShutdownRequested(gid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entry(gid)
	return ok && entry.Shutdown
}

// Lookup returns the session entry of gid
func (s *Store) Lookup(gid string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entry(gid)
}

// RemoveGID forgets gid
func (s *Store) RemoveGID(gid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gids.Delete(gid)
}

// ActiveGIDs returns the registered gids in lexical order
func (s *Store) ActiveGIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.gids.Items()
	gids := make([]string, 0, len(items))
	for gid := range items {
		gids = append(gids, gid)
	}
	sort.Strings(gids)
	return gids
}

// AddCategory registers a category with its stop flag cleared
func (s *Store) AddCategory(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories.Set(name, false, cache.NoExpiration)
}

// RequestCategoryShutdown flags a category as stopping
func (s *Store) RequestCategoryShutdown(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories.Set(name, true, cache.NoExpiration)
}

// CategoryShutdownRequested reports whether the category was asked to stop
func (s *Store) CategoryShutdownRequested(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.categories.Get(name)
	if !ok {
		return false
	}
	shutdown, _ := v.(bool)
	return shutdown
}

// RemoveCategory forgets a category
func (s *Store) RemoveCategory(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories.Delete(name)
}

// ResetAll clears both tables
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gids.Flush()
	s.categories.Flush()
}

func (s *Store) entry(gid string) (Entry, bool) {
	v, ok := s.gids.Get(gid)
	if !ok {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	return entry, ok
}

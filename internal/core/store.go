package core

import "sync"

type record struct {
	entity  Entity
	version int
	dead    bool
}

// Store is the authoritative holder of all entities: an ordered map from
// identifier to entity, insertion order preserved for deterministic
// listing. Deleted entities are tombstoned rather than removed so an
// identifier is never reassigned for the lifetime of the process.
//
// Readers may call Get, List, Exists and Count from any goroutine. The
// mutating methods are unexported: only the Processor, which serializes
// all writes, ever calls them.
type Store struct {
	mu      sync.RWMutex
	kind    string
	records map[string]*record
	order   []string
}

// NewStore returns an empty store. kind labels reason strings ("student").
func NewStore(kind string) *Store {
	if kind == "" {
		kind = "entity"
	}
	return &Store{
		kind:    kind,
		records: make(map[string]*record),
	}
}

// Get returns a snapshot of the live entity with the given identifier.
func (s *Store) Get(id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || rec.dead {
		return Snapshot{}, NotFoundf("%s %q not found", s.kind, id)
	}
	return Snapshot{Entity: rec.entity.Clone(), Version: rec.version}, nil
}

// List returns snapshots of every live entity in insertion order. Each call
// takes a fresh copy reflecting the state at the time of the call.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if rec.dead {
			continue
		}
		out = append(out, Snapshot{Entity: rec.entity.Clone(), Version: rec.version})
	}
	return out
}

// Exists reports whether a live entity has the given identifier.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return ok && !rec.dead
}

// Count returns the number of live entities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.order {
		if !s.records[id].dead {
			n++
		}
	}
	return n
}

// assigned reports whether an identifier has ever been used, tombstoned
// included.
func (s *Store) assigned(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// findByKey returns the live entity whose unique key equals value.
func (s *Store) findByKey(keyOf func(Entity) string, value string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		rec := s.records[id]
		if rec.dead {
			continue
		}
		if keyOf(rec.entity) == value {
			return Snapshot{Entity: rec.entity.Clone(), Version: rec.version}, true
		}
	}
	return Snapshot{}, false
}

func (s *Store) insert(e Entity, version int) error {
	id := e.EntityID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return Conflictf("%s identifier %q already assigned", s.kind, id)
	}
	s.records[id] = &record{entity: e.Clone(), version: version}
	s.order = append(s.order, id)
	return nil
}

func (s *Store) replace(id string, e Entity) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.dead {
		return Snapshot{}, NotFoundf("%s %q not found", s.kind, id)
	}
	rec.entity = e.Clone()
	rec.version++
	return Snapshot{Entity: rec.entity.Clone(), Version: rec.version}, nil
}

func (s *Store) tombstone(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.dead {
		return Snapshot{}, NotFoundf("%s %q not found", s.kind, id)
	}
	rec.dead = true
	rec.version++
	return Snapshot{Entity: rec.entity.Clone(), Version: rec.version}, nil
}

// clearAll tombstones every live entity and returns how many it touched.
// Identifiers stay reserved.
func (s *Store) clearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.order {
		rec := s.records[id]
		if rec.dead {
			continue
		}
		rec.dead = true
		rec.version++
		n++
	}
	return n
}

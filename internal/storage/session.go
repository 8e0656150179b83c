package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "github.com/yield-indexer/internal/errors"
	"github.com/yield-indexer/internal/models"
)

type entityKey struct {
	kind models.Kind
	id   string
}

// Session is the unit of work of one event. Loads see committed state plus
// the session's own writes; nothing is visible to others before Commit.
// A Session is not safe for concurrent use.
type Session struct {
	backend Backend
	cache   map[entityKey]models.Entity
	missing map[entityKey]bool
	dirty   map[entityKey]int
	seq     int
}

// NewSession opens a unit of work against backend
func NewSession(backend Backend) *Session {
	return &Session{
		backend: backend,
		cache:   make(map[entityKey]models.Entity),
		missing: make(map[entityKey]bool),
		dirty:   make(map[entityKey]int),
	}
}

// Load returns the entity stored under (kind, id)
func (s *Session) Load(ctx context.Context, kind models.Kind, id string) (models.Entity, bool, error) {
	key := entityKey{kind, id}
	if e, ok := s.cache[key]; ok {
		return e, true, nil
	}
	if s.missing[key] {
		return nil, false, nil
	}

	data, ok, err := s.backend.Get(ctx, kind, id)
	if err != nil {
		return nil, false, apperrors.NewStoreError(fmt.Sprintf("load %s %s", kind, id), err)
	}
	if !ok {
		s.missing[key] = true
		return nil, false, nil
	}

	e, err := models.New(kind)
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, false, apperrors.NewStoreError(fmt.Sprintf("decode %s %s", kind, id), err)
	}
	s.cache[key] = e
	return e, true, nil
}

// Exists reports whether (kind, id) is stored or pending in this session
func (s *Session) Exists(ctx context.Context, kind models.Kind, id string) (bool, error) {
	_, ok, err := s.Load(ctx, kind, id)
	return ok, err
}

// Save marks e for writing on commit. Saving the same entity twice is fine.
func (s *Session) Save(e models.Entity) {
	key := entityKey{e.EntityKind(), e.EntityID()}
	s.cache[key] = e
	delete(s.missing, key)
	if _, ok := s.dirty[key]; !ok {
		s.seq++
		s.dirty[key] = s.seq
	}
}

// Insert saves a write-once entity unless one already exists under its key.
// It reports whether the entity was new.
func (s *Session) Insert(ctx context.Context, e models.WriteOnce) (bool, error) {
	exists, err := s.Exists(ctx, e.EntityKind(), e.EntityID())
	if err != nil || exists {
		return false, err
	}
	s.Save(e)
	return true, nil
}

// Discard drops every pending write and the read cache, leaving the
// session as if it had just been opened
func (s *Session) Discard() {
	s.cache = make(map[entityKey]models.Entity)
	s.missing = make(map[entityKey]bool)
	s.dirty = make(map[entityKey]int)
	s.seq = 0
}

// Dirty returns the pending entities in save order
func (s *Session) Dirty() []models.Entity {
	keys := make([]entityKey, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return s.dirty[keys[i]] < s.dirty[keys[j]] })

	out := make([]models.Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.cache[k])
	}
	return out
}

// Changeset encodes the pending entities
func (s *Session) Changeset(cursor *Cursor) (*Changeset, error) {
	cs := &Changeset{Cursor: cursor}
	for _, e := range s.Dirty() {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
		}
		_, writeOnce := e.(models.WriteOnce)
		cs.Records = append(cs.Records, Record{
			Kind:      e.EntityKind(),
			ID:        e.EntityID(),
			Data:      data,
			WriteOnce: writeOnce,
			Entity:    e,
		})
	}
	return cs, nil
}

// Commit writes the session and cursor to the backend in one step
func (s *Session) Commit(ctx context.Context, cursor *Cursor) (*Changeset, error) {
	cs, err := s.Changeset(cursor)
	if err != nil {
		return nil, err
	}
	if cs.Len() == 0 && cursor == nil {
		return cs, nil
	}
	if err := s.backend.Commit(ctx, cs); err != nil {
		return nil, err
	}
	s.dirty = make(map[entityKey]int)
	return cs, nil
}

// Get loads a typed entity
func Get[T models.Entity](ctx context.Context, s *Session, kind models.Kind, id string) (T, bool, error) {
	var zero T
	e, ok, err := s.Load(ctx, kind, id)
	if err != nil || !ok {
		return zero, false, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, false, fmt.Errorf("entity %s %s has type %T", kind, id, e)
	}
	return t, true, nil
}

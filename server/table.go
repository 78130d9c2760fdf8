package server

import (
	"errors"
	"fmt"
	"relay-im/transport"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrDuplicateSession  = errors.New("session already present")
	ErrUnknownSession    = errors.New("unknown session")
	ErrAlreadyRegistered = errors.New("session already registered")
)

// Table maps live handles to sessions. It is not safe for concurrent use: the
// relay's control loop is its only owner.
type Table struct {
	sessions  map[uuid.UUID]*Session
	order     []uuid.UUID // 插入顺序 保证快照顺序确定
	queueSize int
}

func NewTable(queueSize int) *Table {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Table{
		sessions:  make(map[uuid.UUID]*Session),
		queueSize: queueSize,
	}
}

// Insert adds an unregistered session for handle.
func (t *Table) Insert(handle uuid.UUID, stream transport.Stream) (*Session, error) {
	if _, ok := t.sessions[handle]; ok {
		return nil, fmt.Errorf("insert %s: %w", handle, ErrDuplicateSession)
	}
	s := NewSession(handle, stream, t.queueSize)
	t.sessions[handle] = s
	t.order = append(t.order, handle)
	return s, nil
}

// SetName registers the session under name. Only the first call succeeds.
func (t *Table) SetName(handle uuid.UUID, name string) error {
	s, ok := t.sessions[handle]
	if !ok {
		return fmt.Errorf("set name %s: %w", handle, ErrUnknownSession)
	}
	if s.registered {
		return fmt.Errorf("set name %s: %w", handle, ErrAlreadyRegistered)
	}
	s.name = name
	s.registered = true
	return nil
}

// Remove deletes handle and returns its session. Removing an absent handle
// reports ErrUnknownSession and leaves the table untouched.
func (t *Table) Remove(handle uuid.UUID) (*Session, error) {
	s, ok := t.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("remove %s: %w", handle, ErrUnknownSession)
	}
	delete(t.sessions, handle)
	t.order = lo.Without(t.order, handle)
	return s, nil
}

func (t *Table) Get(handle uuid.UUID) (*Session, bool) {
	s, ok := t.sessions[handle]
	return s, ok
}

func (t *Table) Len() int {
	return len(t.sessions)
}

// Snapshot returns the live sessions in insertion order. The slice is fresh,
// later mutations of the table do not show through it.
func (t *Table) Snapshot() []*Session {
	return lo.Map(t.order, func(h uuid.UUID, _ int) *Session {
		return t.sessions[h]
	})
}

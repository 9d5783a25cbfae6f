package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionExpired is returned when the owner has no active session.
	ErrSessionExpired = errors.New("session expired")
	// ErrEmptyResults is returned by Create when there is nothing to browse.
	ErrEmptyResults = errors.New("session needs at least one result")
	// ErrInvariantViolation marks a session whose position or state is impossible.
	ErrInvariantViolation = errors.New("session invariant violated")
)

// ImageRef is a dereferenceable image URL.
type ImageRef string

// State of a browsing session.
type State int

const (
	Browsing State = iota
	Published
)

func (s State) String() string {
	switch s {
	case Browsing:
		return "browsing"
	case Published:
		return "published"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one user's paging context over a fixed result set.
type Session struct {
	ID        string     `json:"id"`
	Owner     string     `json:"owner"`
	Query     string     `json:"query"`
	Results   []ImageRef `json:"results"`
	Position  int        `json:"position"`
	State     State      `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Len returns the number of results.
func (s Session) Len() int { return len(s.Results) }

// Current returns the image at the current position. Callers must Validate first.
func (s Session) Current() ImageRef { return s.Results[s.Position] }

// Validate checks the position and result invariants.
func (s Session) Validate() error {
	if len(s.Results) == 0 {
		return fmt.Errorf("%w: owner %s has no results", ErrInvariantViolation, s.Owner)
	}
	if s.Position < 0 || s.Position >= len(s.Results) {
		return fmt.Errorf("%w: owner %s position %d out of [0,%d)", ErrInvariantViolation, s.Owner, s.Position, len(s.Results))
	}
	return nil
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	out := s
	out.Results = append([]ImageRef(nil), s.Results...)
	return out
}

// Mutator computes the next session from a snapshot of the current one.
// Returning a session in state Published removes it from the store.
type Mutator func(Session) (Session, error)

// Store owns every browsing session, keyed by owner.
type Store interface {
	// Create installs a fresh Browsing session, replacing any previous one for owner.
	Create(ctx context.Context, owner, query string, results []ImageRef) (string, error)
	Get(ctx context.Context, owner string) (Session, error)
	Update(ctx context.Context, owner string, position int) error
	// Remove is idempotent.
	Remove(ctx context.Context, owner string) error
	// Modify runs fn as one critical section for owner and stores its result.
	Modify(ctx context.Context, owner string, fn Mutator) (Session, error)
	Close() error
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// New builds a Browsing session at position 0. It does not touch any store.
func New(id, owner, query string, results []ImageRef, now time.Time) (Session, error) {
	if len(results) == 0 {
		return Session{}, ErrEmptyResults
	}
	return Session{
		ID:        id,
		Owner:     owner,
		Query:     query,
		Results:   append([]ImageRef(nil), results...),
		Position:  0,
		State:     Browsing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

package query

import (
	"context"
	"errors"
	"sync"
)

// MutationStatus describes the lifecycle of a mutation instance.
type MutationStatus int

const (
	MutationIdle MutationStatus = iota
	MutationPending
	MutationSuccess
	MutationError
)

// String returns a lowercase label for the status.
func (s MutationStatus) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationSuccess:
		return "success"
	case MutationError:
		return "error"
	default:
		return "unknown"
	}
}

// Tag classifies a mutation failure so callers can branch on meaning rather
// than on message text.
type Tag string

const (
	TagValidation Tag = "validation"
	TagConflict   Tag = "conflict"
	TagExpired    Tag = "expired"
	TagTransport  Tag = "transport"
	TagSchema     Tag = "schema"
	TagUnknown    Tag = "unknown"
)

// ErrMutationPending is returned by Run when the mutation is already in
// flight.
var ErrMutationPending = errors.New("mutation already pending")

// Mutation executes a state-changing request with an
// idle → pending → success|error lifecycle. On success the declared query
// key prefixes are invalidated before Run returns, so a caller that acts on
// success never observes stale data for those keys.
type Mutation struct {
	cache       *Cache
	invalidates []Key
	classify    func(error) Tag

	mu     sync.Mutex
	status MutationStatus
	err    error
	tag    Tag
}

// NewMutation builds a mutation that invalidates the given key prefixes on
// success.
func NewMutation(cache *Cache, invalidates ...Key) *Mutation {
	return &Mutation{cache: cache, invalidates: invalidates}
}

// WithClassifier installs the failure classifier and returns the mutation.
// Without one every failure is tagged TagUnknown.
func (m *Mutation) WithClassifier(classify func(error) Tag) *Mutation {
	m.classify = classify
	return m
}

// Run executes do. At most one run may be in flight; a second call while
// pending returns ErrMutationPending without touching state.
func (m *Mutation) Run(ctx context.Context, do func(context.Context) error) error {
	m.mu.Lock()
	if m.status == MutationPending {
		m.mu.Unlock()
		return ErrMutationPending
	}
	m.status = MutationPending
	m.err = nil
	m.tag = ""
	m.mu.Unlock()

	err := do(ctx)
	if err == nil {
		for _, prefix := range m.invalidates {
			m.cache.Invalidate(prefix)
		}
		m.mu.Lock()
		m.status = MutationSuccess
		m.mu.Unlock()
		return nil
	}

	tag := TagUnknown
	if m.classify != nil {
		tag = m.classify(err)
	}
	m.mu.Lock()
	m.status = MutationError
	m.err = err
	m.tag = tag
	m.mu.Unlock()
	return err
}

// Status returns the current lifecycle phase.
func (m *Mutation) Status() MutationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Err returns the most recent failure, or nil.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Tag returns the classification of the most recent failure. It is empty
// unless Status is MutationError.
func (m *Mutation) Tag() Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tag
}

// Reset returns the mutation to idle, e.g. when the owning modal is closed
// and reopened. A pending run is not interrupted; its outcome still lands.
func (m *Mutation) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == MutationPending {
		return
	}
	m.status = MutationIdle
	m.err = nil
	m.tag = ""
}

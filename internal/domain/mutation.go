package domain

import (
	"time"

	"github.com/google/uuid"
)

// MutationState is the lifecycle position of a store command.
type MutationState string

const (
	MutationPending    MutationState = "PENDING"
	MutationCommitted  MutationState = "COMMITTED"
	MutationRolledBack MutationState = "ROLLED_BACK"
)

// Mutation records one store command: PENDING until the gateway answers, then
// COMMITTED or ROLLED_BACK.
type Mutation struct {
	ID        string        `json:"id"`
	Op        string        `json:"op"`
	State     MutationState `json:"state"`
	Err       error         `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	SettledAt time.Time     `json:"settled_at,omitempty"`
}

// NewMutation starts a pending mutation.
func NewMutation(op string, now time.Time) *Mutation {
	return &Mutation{
		ID:        uuid.NewString(),
		Op:        op,
		State:     MutationPending,
		StartedAt: now,
	}
}

// Commit settles m as applied.
func (m *Mutation) Commit(now time.Time) {
	m.State = MutationCommitted
	m.SettledAt = now
}

// Rollback settles m as reverted because of err.
func (m *Mutation) Rollback(err error, now time.Time) {
	m.State = MutationRolledBack
	m.Err = err
	m.SettledAt = now
}

// Settled reports whether m has left PENDING.
func (m *Mutation) Settled() bool {
	return m.State != MutationPending
}

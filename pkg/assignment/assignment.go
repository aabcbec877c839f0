// Package assignment records which user owns a record for a given role.
package assignment

import (
	"context"
	"sync"

	"github.com/dukex/orderflow/pkg/models"
)

// Request asks for RecordID to be owned by UserID in the TargetType role.
// With OnlyUnassigned, an existing owner is kept.
type Request struct {
	TargetType     models.TargetType
	RecordID       string
	UserID         string
	OnlyUnassigned bool
}

// Recorder persists assignments. Assign reports the owner after the call and
// whether the requested user was written.
type Recorder interface {
	Assign(ctx context.Context, req Request) (owner string, assigned bool, err error)
	Owner(ctx context.Context, target models.TargetType, recordID string) (string, error)
}

type MemoryRecorder struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{owners: make(map[string]string)}
}

func (r *MemoryRecorder) Assign(_ context.Context, req Request) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key(req.TargetType, req.RecordID)

	if owner, ok := r.owners[key]; ok && req.OnlyUnassigned {
		return owner, false, nil
	}

	r.owners[key] = req.UserID

	return req.UserID, true, nil
}

func (r *MemoryRecorder) Owner(_ context.Context, target models.TargetType, recordID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.owners[Key(target, recordID)], nil
}

// Key is the storage key of an assignment.
func Key(target models.TargetType, recordID string) string {
	return "orderflow:assignment:" + string(target) + ":" + recordID
}

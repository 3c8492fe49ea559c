// Package fakes provides in-memory repository implementations for
// engine tests. The fakes replicate the SQL guard semantics (conditional
// updates, insert-if-absent) so idempotency behavior is testable without
// a live database.
package fakes

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/notify"
	"github.com/Ramsey-B/laurel/pkg/repositories"
)

// UserRepo is an in-memory repositories.UserRepo
type UserRepo struct {
	mu    sync.Mutex
	Users map[uuid.UUID]*models.User
}

func NewUserRepo(users ...*models.User) *UserRepo {
	r := &UserRepo{Users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		r.Users[u.ID] = u
	}
	return r
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, repositories.NotFound("user %s not found", id)
	}
	copied := *u
	return &copied, nil
}

func (r *UserRepo) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.Users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

// Notifier records every notification it is asked to send. Setting Err
// makes Send fail, for testing best-effort delivery paths.
type Notifier struct {
	mu   sync.Mutex
	Err  error
	Sent []notify.Notification
}

func (n *Notifier) Send(ctx context.Context, notification notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, notification)
	return nil
}

// ByType returns the recorded notifications of one type
func (n *Notifier) ByType(t string) []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Notification
	for _, sent := range n.Sent {
		if sent.Type == t {
			out = append(out, sent)
		}
	}
	return out
}

// Package lease guards a product against being edited by more than one
// draft at a time, within a process or across replicas.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// DefaultTTL bounds how long an abandoned lease blocks its product.
const DefaultTTL = 4 * time.Hour

// Locker hands out exclusive, expiring leases on keys.
type Locker interface {
	// Acquire takes the lease on key for owner. Acquiring a lease the owner
	// already holds renews it. A lease held by another owner is a conflict.
	Acquire(ctx context.Context, key, owner string) error
	// Release drops the lease if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

type entry struct {
	owner   string
	expires time.Time
}

// Local is an in-process Locker.
type Local struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	leases map[string]entry
}

// NewLocal creates an in-process locker. A non-positive ttl uses DefaultTTL.
func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Local{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]entry),
	}
}

// Acquire implements Locker.
func (l *Local) Acquire(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.leases[key]; ok && e.owner != owner && now.Before(e.expires) {
		return apperrors.Conflict(fmt.Sprintf("%s is leased by %s", key, e.owner))
	}
	l.leases[key] = entry{owner: owner, expires: now.Add(l.ttl)}
	return nil
}

// Release implements Locker.
func (l *Local) Release(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.leases[key]; ok && e.owner == owner {
		delete(l.leases, key)
	}
	return nil
}

// Len returns the number of leases held, expired ones included.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}

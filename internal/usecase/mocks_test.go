//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"loyalty-core/internal/domain"
	"loyalty-core/internal/domain/model"
	"loyalty-core/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// MockTxManager runs the callback without a real transaction; repositories
// accept the nil handle.
type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// fixedHasher gives deterministic, non-reversible-looking hashes for tests.
type fixedHasher struct{}

func (fixedHasher) Hash(addr string) string { return "h:" + addr }

// recordingPassSync captures field pushes so tests can assert on them.
type recordingPassSync struct {
	mu     sync.Mutex
	pushes []map[string]string
}

func (s *recordingPassSync) NotifyFieldUpdate(ctx context.Context, customerPassID string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = append(s.pushes, fields)
	return nil
}

func (s *recordingPassSync) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pushes)
}

// stubLimiter answers every Allow call with a fixed verdict.
type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.calls++
	return s.allow, s.err
}

// stubLocker simulates the redis tap guard.
type stubLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	denied bool
}

func newStubLocker() *stubLocker { return &stubLocker{held: map[string]bool{}} }

func (s *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied || s.held[key] {
		return "", domain.ErrRedeemInProgress
	}
	s.held[key] = true
	return "tok", nil
}

func (s *stubLocker) Unlock(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
	return nil
}

// memProgramRepo is a small in-memory implementation used by unit tests.
type memProgramRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Program
	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Program) error
}

func newMemProgramRepo() *memProgramRepo {
	return &memProgramRepo{store: make(map[string]*model.Program)}
}

func (m *memProgramRepo) Save(ctx context.Context, tx repository.Tx, p *model.Program) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memProgramRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProgramRepo) ListByBusiness(ctx context.Context, tx repository.Tx, businessID string) ([]*model.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Program
	for _, p := range m.store {
		if p.BusinessID == businessID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProgramRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.ProgramStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.ProgramStatus]int)
	for _, p := range m.store {
		out[p.Status]++
	}
	return out, nil
}

// memMembershipRepo stores memberships keyed by id and (program, pass).
type memMembershipRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Membership
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{store: make(map[string]*model.Membership)}
}

func (m *memMembershipRepo) Save(ctx context.Context, tx repository.Tx, mem *model.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.store[mem.ID] = &cp
	return nil
}

func (m *memMembershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *memMembershipRepo) FindByProgramAndPass(ctx context.Context, tx repository.Tx, programID, customerPassID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.store {
		if mem.ProgramID == programID && mem.CustomerPassID == customerPassID {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMembershipRepo) ListByProgram(ctx context.Context, tx repository.Tx, programID string, offset, limit int) ([]*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Membership
	for _, mem := range m.store {
		if mem.ProgramID == programID {
			cp := *mem
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memEarnEventRepo collects appended audit rows.
type memEarnEventRepo struct {
	mu     sync.RWMutex
	events []*model.EarnEvent
}

func newMemEarnEventRepo() *memEarnEventRepo { return &memEarnEventRepo{} }

func (m *memEarnEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.EarnEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *memEarnEventRepo) ListByMembership(ctx context.Context, tx repository.Tx, membershipID string, offset, limit int) ([]*model.EarnEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.EarnEvent
	for _, e := range m.events {
		if e.MembershipID == membershipID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEarnEventRepo) ListInvalidByProgram(ctx context.Context, tx repository.Tx, programID string, offset, limit int) ([]*model.EarnEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.EarnEvent
	for _, e := range m.events {
		if e.ProgramID == programID && !e.Valid {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEarnEventRepo) all() []*model.EarnEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.EarnEvent, len(m.events))
	copy(out, m.events)
	return out
}

// memRedemptionRepo stores redemptions keyed by id.
type memRedemptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Redemption
}

func newMemRedemptionRepo() *memRedemptionRepo {
	return &memRedemptionRepo{store: make(map[string]*model.Redemption)}
}

func (m *memRedemptionRepo) Save(ctx context.Context, tx repository.Tx, r *model.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *memRedemptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRedemptionRepo) ListByMembership(ctx context.Context, tx repository.Tx, membershipID string) ([]*model.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Redemption
	for _, r := range m.store {
		if r.MembershipID == membershipID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRedemptionRepo) ExpireDisplayBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.store {
		if r.Status == model.RedemptionStatusConsumed && !r.DisplayExpiresAt.After(cutoff) {
			r.Status = model.RedemptionStatusExpiredDisplay
			n++
		}
	}
	return n, nil
}

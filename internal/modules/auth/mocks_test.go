package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"taskmanager/internal/domain"
	"taskmanager/internal/events"
	"taskmanager/internal/repository"
)

// Mock User Repository implementing the interface
type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) SetLoggedIn(ctx context.Context, id string, loggedIn bool) error {
	args := m.Called(ctx, id, loggedIn)
	return args.Error(0)
}

// memLedger is an in-memory ledger with switchable storage failures.
type memLedger struct {
	mu   sync.Mutex
	rows map[string]domain.RefreshToken

	persistErr error
	deleteErr  error
	consumeErr error
	findErr    error
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]domain.RefreshToken)}
}

var errDiskOnFire = errors.New("disk on fire")

func storageFailure(op string) error {
	return domain.NewStorageError(op, errDiskOnFire)
}

func (l *memLedger) Persist(_ context.Context, subjectID, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.persistErr != nil {
		return nil, l.persistErr
	}
	rec := domain.RefreshToken{UserID: subjectID, TokenHash: repository.HashToken(token), ExpiresAt: expiresAt}
	l.rows[rec.TokenHash] = rec
	return &rec, nil
}

func (l *memLedger) FindByTokenAndSubject(_ context.Context, token, subjectID string) (*domain.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	rec, ok := l.rows[repository.HashToken(token)]
	if !ok || rec.UserID != subjectID {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (l *memLedger) DeleteByToken(_ context.Context, token string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleteErr != nil {
		return 0, l.deleteErr
	}
	hash := repository.HashToken(token)
	if _, ok := l.rows[hash]; !ok {
		return 0, nil
	}
	delete(l.rows, hash)
	return 1, nil
}

func (l *memLedger) DeleteBySubject(_ context.Context, subjectID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleteErr != nil {
		return 0, l.deleteErr
	}
	var n int64
	for hash, rec := range l.rows {
		if rec.UserID == subjectID {
			delete(l.rows, hash)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) Consume(_ context.Context, token, subjectID string) (*domain.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.consumeErr != nil {
		return nil, l.consumeErr
	}
	hash := repository.HashToken(token)
	rec, ok := l.rows[hash]
	if !ok || rec.UserID != subjectID {
		return nil, domain.ErrNotFound
	}
	delete(l.rows, hash)
	return &rec, nil
}

func (l *memLedger) contains(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rows[repository.HashToken(token)]
	return ok
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

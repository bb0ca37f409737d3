// Package session keeps the PaymentInfo written at submission until the
// details view reads it back.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 30 * time.Minute

var ErrNotFound = errors.New("payment info not found in session")

// PaymentInfo is what the details view needs to render a submitted payment.
// Amount is the canonical major-unit decimal ("50.00").
type PaymentInfo struct {
	ID      string `json:"id"`
	PixCode string `json:"pixCode"`
	QrCode  string `json:"qrCode"`
	Amount  string `json:"amount"`
	Name    string `json:"name"`
	CPF     string `json:"cpf"`
}

type Store interface {
	Save(ctx context.Context, key string, info PaymentInfo) error
	Load(ctx context.Context, key string) (*PaymentInfo, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh, unguessable session key.
func NewKey() string {
	return uuid.NewString()
}

type memoryEntry struct {
	info      PaymentInfo
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Expired entries are dropped lazily on Load.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Save(_ context.Context, key string, info PaymentInfo) error {
	if key == "" {
		return errors.New("session key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{info: info, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (*PaymentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	info := entry.info
	return &info, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

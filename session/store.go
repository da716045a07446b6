package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrEthical07/reelclient/jwt"
	"github.com/MrEthical07/reelclient/storage"
)

// DefaultKey is the storage key holding the raw token.
const DefaultKey = "token"

// ErrTokenMalformed is returned when a token cannot be decoded. The session
// has already been cleared when a caller sees it.
var ErrTokenMalformed = errors.New("session: malformed token")

// ErrNilStorage is returned by New when no storage backend is supplied.
var ErrNilStorage = errors.New("session: nil storage")

// Option customizes a Store.
type Option func(*Store)

// WithKey overrides the storage key (default "token").
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the structured logger used for absorbed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// Store is the session store. It is safe for concurrent use.
type Store struct {
	storage storage.Storage
	key     string
	logger  *slog.Logger

	// writeMu orders SetToken and Logout so storage and memory move together.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	token    string
	identity *Identity

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// New builds a Store and restores the persisted token, if any, applying
// the same decode and failure handling as SetToken. A malformed persisted
// token is absorbed (the session starts empty); only storage read failures
// are returned.
func New(ctx context.Context, st storage.Storage, opts ...Option) (*Store, error) {
	if st == nil {
		return nil, ErrNilStorage
	}
	s := &Store{
		storage: st,
		key:     DefaultKey,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	token, err := st.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}

	if err := s.adopt(ctx, token, false, ReasonRestored); err != nil {
		if errors.Is(err, ErrTokenMalformed) {
			s.logger.WarnContext(ctx, "discarded malformed persisted token", "error", err)
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

// SetToken stores token, persists it and decodes the identity. When the
// token is malformed the session is logged out and an error wrapping
// ErrTokenMalformed is returned. When persisting fails the in-memory state
// is left untouched. Surrounding whitespace is trimmed before decoding.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.adopt(ctx, token, true, ReasonSet)
}

func (s *Store) adopt(ctx context.Context, token string, persist bool, reason Reason) error {
	token = strings.TrimSpace(token)
	claims, decodeErr := jwt.Decode(token)

	s.writeMu.Lock()
	if decodeErr != nil {
		err := fmt.Errorf("%w: %v", ErrTokenMalformed, decodeErr)
		change, clearErr := s.clearLocked(ctx, ReasonMalformed, err, true)
		s.writeMu.Unlock()
		s.notify(change)
		if clearErr != nil {
			return errors.Join(err, clearErr)
		}
		return err
	}

	if persist {
		if err := s.storage.Set(ctx, s.key, token); err != nil {
			s.writeMu.Unlock()
			return fmt.Errorf("persist token: %w", err)
		}
	}

	identity := &Identity{Username: claims.Subject}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	s.token = token
	s.identity = identity
	state := s.snapshotLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(&Change{Reason: reason, State: state})
	return nil
}

// Logout clears the in-memory token and identity and removes the persisted
// token. Calling it on an empty session is a no-op with the same post-state.
func (s *Store) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	change, err := s.clearLocked(ctx, ReasonCleared, nil, false)
	s.writeMu.Unlock()
	s.notify(change)
	return err
}

// clearLocked empties memory and storage. The caller holds writeMu and
// delivers the returned change, if any, after releasing it.
func (s *Store) clearLocked(ctx context.Context, reason Reason, cause error, alwaysNotify bool) (*Change, error) {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	var err error
	if delErr := s.storage.Delete(ctx, s.key); delErr != nil {
		err = fmt.Errorf("remove persisted token: %w", delErr)
		s.logger.ErrorContext(ctx, "failed to remove persisted token", "error", delErr)
	}

	if had || alwaysNotify {
		return &Change{Reason: reason, State: State{}, Err: cause}, err
	}
	return nil, err
}

// IsAuthenticated reports whether a token is currently held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the held token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns a copy of the decoded identity, or nil when logged out.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	out := *s.identity
	return &out
}

// State returns a consistent snapshot of token and identity.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{Token: s.token}
	if s.identity != nil {
		id := *s.identity
		st.Identity = &id
	}
	return st
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}

	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Close drops all subscribers. The persisted token is kept.
func (s *Store) Close() {
	s.subsMu.Lock()
	s.subs = nil
	s.subsMu.Unlock()
}

func (s *Store) notify(change *Change) {
	if change == nil {
		return
	}
	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(*change)
	}
}

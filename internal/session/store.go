package session

import (
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
)

// TokenSink receives the current access token after every token mutation. Logout sends "".
type TokenSink interface {
	SetToken(token string)
}

// Persister is the durable storage behind the store. storage.Debounced satisfies it.
type Persister interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string)
	RemoveItem(key string) error
}

type subscriber struct {
	id uint64
	fn func(models.Session)
}

// Store is the session container.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[models.Session]

	persister Persister
	sink      TokenSink
	logger    *log.Logger

	subMu  sync.Mutex
	subs   []subscriber
	nextID uint64
}

// Option configures a [Store].
type Option func(*Store)

// WithPersister persists snapshots under [SnapshotKey] and restores the last one on construction.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithTokenSink registers the collaborator that carries the token on outgoing requests.
func WithTokenSink(sink TokenSink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a store holding the empty session, or the restored snapshot when a persister is set.
func NewStore(opts ...Option) *Store {
	s := &Store{logger: shared.NewLogger(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}

	initial := emptySession()
	if restored, ok := s.restore(); ok {
		initial = restored
	}
	s.current.Store(&initial)

	if s.sink != nil && initial.AccessToken != nil {
		s.sink.SetToken(*initial.AccessToken)
	}
	return s
}

func emptySession() models.Session {
	return models.Session{AdAccounts: []models.AdAccount{}, Packs: []models.Pack{}}
}

// Snapshot returns the current session. Callers must not mutate it; use Clone first.
func (s *Store) Snapshot() models.Session {
	return *s.current.Load()
}

// Subscribe registers fn to receive each published snapshot and returns a function that removes it.
func (s *Store) Subscribe(fn func(models.Session)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

// mutate applies fn to a copy of the current session and publishes the result.
//
// fn returns false to signal that nothing changed, in which case nothing is published or persisted.
func (s *Store) mutate(fn func(*models.Session) bool) bool {
	s.mu.Lock()
	next := s.current.Load().Clone()
	if !fn(&next) {
		s.mu.Unlock()
		return false
	}
	if next.AdAccounts == nil {
		next.AdAccounts = []models.AdAccount{}
	}
	if next.Packs == nil {
		next.Packs = []models.Pack{}
	}
	s.current.Store(&next)
	s.persist(next)
	s.mu.Unlock()

	s.notify(next)
	return true
}

func (s *Store) notify(snap models.Session) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// SetAccessToken replaces the token and forwards it to the token sink.
func (s *Store) SetAccessToken(token *string) {
	s.mutate(func(next *models.Session) bool {
		if token == nil {
			next.AccessToken = nil
		} else {
			v := *token
			next.AccessToken = &v
		}
		if s.sink != nil {
			s.sink.SetToken(next.Token())
		}
		return true
	})
}

// SetUser replaces the user profile.
func (s *Store) SetUser(user *models.User) {
	s.mutate(func(next *models.Session) bool {
		if user == nil {
			next.User = nil
		} else {
			u := *user
			next.User = &u
		}
		return true
	})
}

// SetAdAccounts replaces the linked ad accounts.
func (s *Store) SetAdAccounts(accounts []models.AdAccount) {
	s.mutate(func(next *models.Session) bool {
		next.AdAccounts = slices.Clone(accounts)
		return true
	})
}

// Login replaces the whole session with a fresh one for user in a single publish.
//
// Packs and ad accounts of any previous session are dropped; the token sink is told once.
func (s *Store) Login(token string, user models.User, accounts []models.AdAccount) {
	s.mutate(func(next *models.Session) bool {
		*next = emptySession()
		next.AccessToken = &token
		next.User = &user
		next.AdAccounts = slices.Clone(accounts)
		if s.sink != nil {
			s.sink.SetToken(token)
		}
		return true
	})
}

// AddPack inserts pack, replacing an existing pack with the same id so ids stay unique.
func (s *Store) AddPack(pack models.Pack) {
	s.mutate(func(next *models.Session) bool {
		if _, i := next.FindPack(pack.ID); i >= 0 {
			next.Packs[i] = pack.Clone()
		} else {
			next.Packs = append(next.Packs, pack.Clone())
		}
		return true
	})
}

// RemovePack removes the pack with id. It reports whether a pack was removed.
func (s *Store) RemovePack(id string) bool {
	return s.mutate(func(next *models.Session) bool {
		_, i := next.FindPack(id)
		if i < 0 {
			return false
		}
		next.Packs = slices.Delete(next.Packs, i, i+1)
		return true
	})
}

// UpdatePack replaces the pack with id by fn's result. It reports whether the pack exists.
//
// fn receives a private copy; the returned pack keeps the original id.
func (s *Store) UpdatePack(id string, fn func(models.Pack) models.Pack) bool {
	return s.mutate(func(next *models.Session) bool {
		p, i := next.FindPack(id)
		if i < 0 {
			return false
		}
		updated := fn(p)
		updated.ID = id
		next.Packs[i] = updated
		return true
	})
}

// SetPacks replaces the whole pack list in a single publish. Duplicate ids keep the last entry.
func (s *Store) SetPacks(packs []models.Pack) {
	s.ModifyPacks(func([]models.Pack) ([]models.Pack, bool) { return packs, true })
}

// ModifyPacks runs fn on a private copy of the pack list under the writer lock.
//
// fn returns the next list and whether anything changed; nothing is published when it reports no change.
func (s *Store) ModifyPacks(fn func(current []models.Pack) ([]models.Pack, bool)) bool {
	return s.mutate(func(next *models.Session) bool {
		packs, changed := fn(next.Packs)
		if !changed {
			return false
		}
		next.Packs = dedupePacks(packs)
		return true
	})
}

// ModifyPacksFor is [Store.ModifyPacks] guarded by the session owner: fn only runs while the signed-in user is
// userID. It reports false without calling fn when the session belongs to someone else or nobody.
func (s *Store) ModifyPacksFor(userID string, fn func(current []models.Pack) ([]models.Pack, bool)) bool {
	return s.mutate(func(next *models.Session) bool {
		if next.User == nil || next.User.ID != userID {
			return false
		}
		packs, changed := fn(next.Packs)
		if !changed {
			return false
		}
		next.Packs = dedupePacks(packs)
		return true
	})
}

func dedupePacks(packs []models.Pack) []models.Pack {
	out := make([]models.Pack, 0, len(packs))
	index := make(map[string]int, len(packs))
	for _, p := range packs {
		if i, ok := index[p.ID]; ok {
			out[i] = p.Clone()
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p.Clone())
	}
	return out
}

// Logout resets to the empty session, discards the durable snapshot and clears the sink's token.
func (s *Store) Logout() {
	s.mu.Lock()
	empty := emptySession()
	s.current.Store(&empty)
	if s.persister != nil {
		if err := s.persister.RemoveItem(SnapshotKey); err != nil {
			s.logger.Warn("failed to remove session snapshot", "error", err)
		}
	}
	if s.sink != nil {
		s.sink.SetToken("")
	}
	s.mu.Unlock()

	s.notify(empty)
}

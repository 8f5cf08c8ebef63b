package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/doppelkit/clone-go-sdk/score"
)

// ScoreFunc rates one memory's content against the current query.
// The store is deliberately ignorant of how scores are produced; the
// assembler supplies a closure over the composite scorer or the keyword
// fallback, depending on embedder availability.
type ScoreFunc func(content string) float64

// TierStore is the in-memory tiered store. All state is partitioned by
// user; per-user snapshots are guarded by one RWMutex, so concurrent
// retrievals for different users never contend on anything but the map
// lookup.
type TierStore struct {
	mu     sync.RWMutex
	users  map[string]*userMemories
	caps   Caps
	floors Floors
	log    *logrus.Entry
	now    func() time.Time
}

type userMemories struct {
	core     []*Item
	episodic []*Item
	archival []*Item
}

// StoreOption configures a TierStore.
type StoreOption func(*TierStore)

// WithCaps overrides the default tier bounds.
func WithCaps(c Caps) StoreOption {
	return func(s *TierStore) { s.caps = c }
}

// WithFloors overrides the default per-tier score floors.
func WithFloors(f Floors) StoreOption {
	return func(s *TierStore) { s.floors = f }
}

// WithClock overrides the time source. Tests use this to drive
// last-accessed ordering deterministically.
func WithClock(now func() time.Time) StoreOption {
	return func(s *TierStore) { s.now = now }
}

// NewTierStore creates an empty tiered store.
func NewTierStore(opts ...StoreOption) *TierStore {
	s := &TierStore{
		users:  make(map[string]*userMemories),
		caps:   DefaultCaps,
		floors: DefaultFloors,
		log:    logrus.WithField("component", "memory"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a new item in the given tier for the user. Direct adds are
// limited to core (explicit API) and episodic (implicit, from
// conversation); archival is demotion-only. An episodic add that pushes
// the tier past its cap demotes the single least-recently-accessed item
// to archival.
func (s *TierStore) Add(userID string, tier Tier, content string) (Item, error) {
	if userID == "" {
		return Item{}, ErrInvalidUserID
	}
	if tier != TierCore && tier != TierEpisodic {
		return Item{}, ErrInvalidTier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	now := s.now()
	item := &Item{
		ID:           uuid.New().String(),
		Content:      content,
		CreatedAt:    now,
		LastAccessed: now,
	}

	switch tier {
	case TierCore:
		if len(u.core) >= s.caps.Core {
			return Item{}, ErrCoreFull
		}
		u.core = append(u.core, item)
	case TierEpisodic:
		u.episodic = append(u.episodic, item)
		for len(u.episodic) > s.caps.Episodic {
			s.demoteOldest(u)
		}
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"tier":    tier,
		"id":      item.ID,
	}).Debug("memory added")

	return *item, nil
}

// demoteOldest moves the episodic item with the oldest LastAccessed to
// archival. One item per call; caller holds the write lock.
func (s *TierStore) demoteOldest(u *userMemories) {
	if len(u.episodic) == 0 {
		return
	}
	oldest := 0
	for i, it := range u.episodic {
		if it.LastAccessed.Before(u.episodic[oldest].LastAccessed) {
			oldest = i
		}
	}
	demoted := u.episodic[oldest]
	u.episodic = append(u.episodic[:oldest], u.episodic[oldest+1:]...)
	u.archival = append(u.archival, demoted)
}

// List returns a copy of the user's items in a tier.
func (s *TierStore) List(userID string, tier Tier) ([]Item, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}

	var src []*Item
	switch tier {
	case TierCore:
		src = u.core
	case TierEpisodic:
		src = u.episodic
	case TierArchival:
		src = u.archival
	default:
		return nil, ErrInvalidTier
	}

	out := make([]Item, len(src))
	for i, it := range src {
		out[i] = *it
	}
	return out, nil
}

// Touch updates an item's LastAccessed to ts. LastAccessed is monotonically
// non-decreasing: an earlier timestamp is a no-op, not an error.
func (s *TierStore) Touch(userID, id string, ts time.Time) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	for _, tier := range [][]*Item{u.core, u.episodic, u.archival} {
		for _, it := range tier {
			if it.ID == id {
				if ts.After(it.LastAccessed) {
					it.LastAccessed = ts
				}
				return nil
			}
		}
	}
	return ErrNotFound
}

// GetRelevant selects the highest-scoring items per tier, subject to
// per-tier retrieval caps and score floors. Every returned item has its
// LastAccessed bumped to now: retrieval deliberately writes, which is what
// implements recency-biased retention.
//
// A bare greeting short-circuits to at most one core item and nothing
// else, so trivial turns don't get irrelevant memory injected.
func (s *TierStore) GetRelevant(userID, query string, scoreFn ScoreFunc) (Result, error) {
	if userID == "" {
		return Result{}, ErrInvalidUserID
	}
	if scoreFn == nil {
		scoreFn = func(string) float64 { return 0 }
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return Result{}, nil
	}
	now := s.now()

	if score.IsGreeting(query) {
		var res Result
		if len(u.core) > 0 {
			first := u.core[0]
			if now.After(first.LastAccessed) {
				first.LastAccessed = now
			}
			res.Core = []Item{*first}
		}
		return res, nil
	}

	res := Result{
		Core:     s.selectTop(u.core, scoreFn, s.caps.RetrieveCore, s.floors.Core, now),
		Episodic: s.selectTop(u.episodic, scoreFn, s.caps.RetrieveEpisodic, s.floors.Episodic, now),
		Archival: s.selectTop(u.archival, scoreFn, s.caps.RetrieveArchival, s.floors.Archival, now),
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"core":     len(res.Core),
		"episodic": len(res.Episodic),
		"archival": len(res.Archival),
	}).Debug("memory retrieval")

	return res, nil
}

// selectTop ranks items by score, keeps those at or above floor, returns
// up to limit, and touches each returned item. Caller holds the write lock.
func (s *TierStore) selectTop(items []*Item, scoreFn ScoreFunc, limit int, floor float64, now time.Time) []Item {
	if limit <= 0 || len(items) == 0 {
		return nil
	}

	type scored struct {
		item *Item
		s    float64
	}
	ranked := make([]scored, 0, len(items))
	for _, it := range items {
		sc := scoreFn(it.Content)
		if sc < floor {
			continue
		}
		ranked = append(ranked, scored{item: it, s: sc})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].s > ranked[j].s
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]Item, 0, len(ranked))
	for _, r := range ranked {
		if now.After(r.item.LastAccessed) {
			r.item.LastAccessed = now
		}
		out = append(out, *r.item)
	}
	return out
}

// Count returns the number of items in a tier for a user. Zero for an
// unknown user.
func (s *TierStore) Count(userID string, tier Tier) int {
	items, err := s.List(userID, tier)
	if err != nil {
		return 0
	}
	return len(items)
}

func (s *TierStore) user(userID string) *userMemories {
	u, ok := s.users[userID]
	if !ok {
		u = &userMemories{}
		s.users[userID] = u
	}
	return u
}

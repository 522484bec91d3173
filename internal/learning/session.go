// Package learning drives one continuous study session over a fixed set of flashcards.
//
// A Session owns the working deck, applies pass/fail judgments to the card at its head and
// derives completion and progress on demand. It is not safe for concurrent use; callers that
// share a session must serialize access themselves.
package learning

import (
	"math/rand/v2"
	"slices"
	"time"
)

// Card is a single question/answer unit. DeckID and CreatedAt are carried through untouched.
type Card struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	DeckID    string    `json:"deck_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds the session-level flags supplied by the caller.
type Config struct {
	Shuffle          bool `json:"shuffle"`
	ThoroughLearning bool `json:"thorough_learning"`
}

// Result is the learner's judgment of the current card.
type Result string

const (
	Pass Result = "pass"
	Fail Result = "fail"
)

// CardStats counts judgments for one card over the whole session.
type CardStats struct {
	OKCount int `json:"ok_count"`
	NGCount int `json:"ng_count"`
}

// retirement records how a card left the working deck.
type retirement uint8

const (
	// retiredJudged: judged once in single-pass mode.
	retiredJudged retirement = iota + 1
	// retiredPassed: final pass in thorough-learning mode.
	retiredPassed
)

type Session struct {
	cards    []Card
	deck     []Card
	stats    map[string]CardStats
	retired  map[string]retirement
	cfg      Config
	shuffled bool
	rng      *rand.Rand
}

// Option customizes a Session.
type Option func(*Session)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rng = r
	}
}

// New creates a session over cards. The slice is copied and never modified.
func New(cards []Card, cfg Config, opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	s.init(cards)
	s.cfg = Config{ThoroughLearning: cfg.ThoroughLearning}
	s.Configure(cfg)
	return s
}

func (s *Session) init(cards []Card) {
	s.cards = slices.Clone(cards)
	s.deck = slices.Clone(cards)
	s.stats = make(map[string]CardStats)
	s.retired = make(map[string]retirement)
	s.shuffled = false
}

// Load supplies the card collection again. A different collection (compared by card ids, in
// order) reinitializes the session as if freshly constructed with the current Config and Load
// reports true; the same collection leaves all state untouched.
func (s *Session) Load(cards []Card) bool {
	if sameCards(s.cards, cards) {
		return false
	}
	s.init(cards)
	if s.cfg.Shuffle {
		s.shuffle()
	}
	return true
}

func sameCards(a, b []Card) bool {
	return slices.EqualFunc(a, b, func(x, y Card) bool { return x.ID == y.ID })
}

// Configure applies new flags. Unchanged flags are a no-op, so it is safe to call on every
// request with the caller's stored preferences.
func (s *Session) Configure(cfg Config) {
	prev := s.cfg
	s.cfg = cfg

	if cfg.ThoroughLearning != prev.ThoroughLearning {
		s.rebuild()
		if cfg.Shuffle {
			s.shuffle()
		}
		return
	}

	switch {
	case cfg.Shuffle && !s.shuffled:
		s.shuffle()
	case !cfg.Shuffle && s.shuffled:
		s.rebuild()
	}
}

// rebuild restores the working deck to canonical order, minus retired cards.
func (s *Session) rebuild() {
	deck := make([]Card, 0, len(s.cards))
	for _, c := range s.cards {
		if _, gone := s.retired[c.ID]; !gone {
			deck = append(deck, c)
		}
	}
	s.deck = deck
	s.shuffled = false
}

func (s *Session) shuffle() {
	swap := func(i, j int) { s.deck[i], s.deck[j] = s.deck[j], s.deck[i] }
	if s.rng != nil {
		s.rng.Shuffle(len(s.deck), swap)
	} else {
		rand.Shuffle(len(s.deck), swap)
	}
	s.shuffled = true
}

// CurrentCard returns the card at the head of the deck, or false once the session is complete.
func (s *Session) CurrentCard() (Card, bool) {
	if len(s.deck) == 0 {
		return Card{}, false
	}
	return s.deck[0], true
}

// Judge records result for the current card and moves the deck along. Without a current card it
// does nothing.
func (s *Session) Judge(result Result) {
	card, ok := s.CurrentCard()
	if !ok {
		return
	}

	st := s.stats[card.ID]
	if result == Pass {
		st.OKCount++
	} else {
		st.NGCount++
	}
	s.stats[card.ID] = st

	if !s.cfg.ThoroughLearning {
		s.deck = s.deck[1:]
		s.retired[card.ID] = retiredJudged
		return
	}

	if result == Pass {
		s.deck = s.deck[1:]
		s.retired[card.ID] = retiredPassed
		return
	}

	// Requeue to the tail; everything else keeps its relative order.
	copy(s.deck, s.deck[1:])
	s.deck[len(s.deck)-1] = card
}

// Pass judges the current card as known.
func (s *Session) Pass() { s.Judge(Pass) }

// Fail judges the current card as not known.
func (s *Session) Fail() { s.Judge(Fail) }

// Reset returns to the canonical unshuffled, unjudged state regardless of the current flags.
// The flags themselves are kept; a later Configure with Shuffle set will shuffle again.
func (s *Session) Reset() {
	s.init(s.cards)
}

// IsCompleted reports whether every card has reached its final outcome. An empty session is
// complete.
func (s *Session) IsCompleted() bool {
	if s.cfg.ThoroughLearning {
		return len(s.retired) == len(s.cards)
	}
	return len(s.deck) == 0
}

// ProgressPercentage returns the share of processed cards, 0 to 100, rounded half up.
func (s *Session) ProgressPercentage() int {
	total := len(s.cards)
	if total == 0 {
		return 0
	}
	processed := total - len(s.deck)
	if s.cfg.ThoroughLearning {
		processed = len(s.retired)
	}
	return (200*processed + total) / (2 * total)
}

// CardStats returns a copy of the per-card counters.
func (s *Session) CardStats() map[string]CardStats {
	out := make(map[string]CardStats, len(s.stats))
	for id, st := range s.stats {
		out[id] = st
	}
	return out
}

// Deck returns a copy of the working deck, head first.
func (s *Session) Deck() []Card {
	return slices.Clone(s.deck)
}

// RemovedPermanently returns the ids passed for good in thorough-learning mode, in input order.
func (s *Session) RemovedPermanently() []string {
	var ids []string
	for _, c := range s.cards {
		if s.retired[c.ID] == retiredPassed {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (s *Session) Total() int     { return len(s.cards) }
func (s *Session) Remaining() int { return len(s.deck) }
func (s *Session) Config() Config { return s.cfg }

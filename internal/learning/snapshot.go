package learning

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCorruptSnapshot is returned by Restore when a snapshot does not describe a consistent session.
var ErrCorruptSnapshot = errors.New("learning: corrupt session snapshot")

// Snapshot is the serializable state of a Session.
type Snapshot struct {
	Cards    []Card               `json:"cards"`
	Deck     []string             `json:"deck"`
	Stats    map[string]CardStats `json:"stats"`
	Judged   []string             `json:"judged,omitempty"`
	Passed   []string             `json:"passed,omitempty"`
	Config   Config               `json:"config"`
	Shuffled bool                 `json:"shuffled"`
}

// Snapshot captures the session state. The returned value shares nothing with the session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Cards:    slices.Clone(s.cards),
		Deck:     make([]string, len(s.deck)),
		Stats:    s.CardStats(),
		Config:   s.cfg,
		Shuffled: s.shuffled,
	}
	for i, c := range s.deck {
		snap.Deck[i] = c.ID
	}
	for _, c := range s.cards {
		switch s.retired[c.ID] {
		case retiredJudged:
			snap.Judged = append(snap.Judged, c.ID)
		case retiredPassed:
			snap.Passed = append(snap.Passed, c.ID)
		}
	}
	return snap
}

// Restore rebuilds a Session from snap. Every card must appear exactly once across the deck and
// the retired lists, and stats may only reference known cards.
func Restore(snap Snapshot, opts ...Option) (*Session, error) {
	byID := make(map[string]Card, len(snap.Cards))
	for _, c := range snap.Cards {
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate card %q", ErrCorruptSnapshot, c.ID)
		}
		byID[c.ID] = c
	}

	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	s.init(snap.Cards)
	s.cfg = snap.Config
	s.shuffled = snap.Shuffled

	seen := make(map[string]bool, len(byID))
	claim := func(id string) (Card, error) {
		c, ok := byID[id]
		if !ok {
			return Card{}, fmt.Errorf("%w: unknown card %q", ErrCorruptSnapshot, id)
		}
		if seen[id] {
			return Card{}, fmt.Errorf("%w: card %q appears twice", ErrCorruptSnapshot, id)
		}
		seen[id] = true
		return c, nil
	}

	s.deck = make([]Card, 0, len(snap.Deck))
	for _, id := range snap.Deck {
		c, err := claim(id)
		if err != nil {
			return nil, err
		}
		s.deck = append(s.deck, c)
	}
	for _, id := range snap.Judged {
		if _, err := claim(id); err != nil {
			return nil, err
		}
		s.retired[id] = retiredJudged
	}
	for _, id := range snap.Passed {
		if _, err := claim(id); err != nil {
			return nil, err
		}
		s.retired[id] = retiredPassed
	}
	if len(seen) != len(byID) {
		return nil, fmt.Errorf("%w: %d of %d cards accounted for", ErrCorruptSnapshot, len(seen), len(byID))
	}

	for id, st := range snap.Stats {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: stats for unknown card %q", ErrCorruptSnapshot, id)
		}
		if st.OKCount < 0 || st.NGCount < 0 {
			return nil, fmt.Errorf("%w: negative stats for card %q", ErrCorruptSnapshot, id)
		}
		s.stats[id] = st
	}

	return s, nil
}

package learning

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func makeCards(ids ...string) []Card {
	cards := make([]Card, len(ids))
	for i, id := range ids {
		cards[i] = Card{ID: id, Question: "q" + id, Answer: "a" + id}
	}
	return cards
}

func deckIDs(s *Session) []string {
	var ids []string
	for _, c := range s.Deck() {
		ids = append(ids, c.ID)
	}
	return ids
}

func seeded() Option {
	return WithRand(rand.New(rand.NewPCG(1, 2)))
}

// assertConserved checks that deck plus retired cards reconstruct the input exactly.
func assertConserved(t *testing.T, s *Session, input []string) {
	t.Helper()
	var got []string
	got = append(got, deckIDs(s)...)
	for id := range s.retired {
		got = append(got, id)
	}
	slices.Sort(got)
	want := slices.Clone(input)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("card multiset not conserved: got %v, want %v", got, want)
	}
}

func TestNew_EmptyInput(t *testing.T) {
	s := New(nil, Config{})

	if _, ok := s.CurrentCard(); ok {
		t.Fatal("expected no current card")
	}
	if !s.IsCompleted() {
		t.Error("expected empty session to be completed")
	}
	if got := s.ProgressPercentage(); got != 0 {
		t.Errorf("expected progress 0, got %d", got)
	}

	s.Pass()
	s.Fail()
	if len(s.CardStats()) != 0 {
		t.Error("judging an empty session must not record stats")
	}
}

func TestNew_EmptyInputThorough(t *testing.T) {
	s := New([]Card{}, Config{ThoroughLearning: true})
	if !s.IsCompleted() {
		t.Error("expected empty thorough session to be completed")
	}
	if got := s.ProgressPercentage(); got != 0 {
		t.Errorf("expected progress 0, got %d", got)
	}
}

func TestNew_DoesNotMutateInput(t *testing.T) {
	cards := makeCards("1", "2", "3", "4", "5")
	s := New(cards, Config{Shuffle: true, ThoroughLearning: true}, seeded())
	s.Fail()
	s.Pass()

	for i, c := range cards {
		if c.ID != string(rune('1'+i)) {
			t.Fatalf("input slice was modified: %v", cards)
		}
	}
}

func TestSinglePass_PassAll(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{})

	wantProgress := []int{33, 67, 100}
	for i, want := range wantProgress {
		s.Pass()
		if got := s.ProgressPercentage(); got != want {
			t.Errorf("after pass %d: expected progress %d, got %d", i+1, want, got)
		}
	}

	if !s.IsCompleted() {
		t.Error("expected session to be completed")
	}
	if _, ok := s.CurrentCard(); ok {
		t.Error("expected no current card after completion")
	}
}

func TestSinglePass_FailStillRemoves(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{})

	s.Fail()
	if got := deckIDs(s); !slices.Equal(got, []string{"2", "3"}) {
		t.Fatalf("expected deck [2 3], got %v", got)
	}
	if got := s.ProgressPercentage(); got != 33 {
		t.Errorf("expected progress 33, got %d", got)
	}
	if st := s.CardStats()["1"]; st.NGCount != 1 || st.OKCount != 0 {
		t.Errorf("unexpected stats for card 1: %+v", st)
	}

	s.Fail()
	s.Pass()
	if !s.IsCompleted() {
		t.Error("expected completion after every card judged once")
	}
	if len(s.RemovedPermanently()) != 0 {
		t.Error("single-pass mode must not mark cards as permanently removed")
	}
}

func TestThorough_CompletionBoundary(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{ThoroughLearning: true})

	s.Fail()
	if got := deckIDs(s); !slices.Equal(got, []string{"2", "3", "1"}) {
		t.Fatalf("after fail(1): expected [2 3 1], got %v", got)
	}
	if got := s.ProgressPercentage(); got != 0 {
		t.Errorf("fail must not move progress, got %d", got)
	}

	s.Pass()
	if got := deckIDs(s); !slices.Equal(got, []string{"3", "1"}) {
		t.Fatalf("after pass(2): expected [3 1], got %v", got)
	}
	if got := s.RemovedPermanently(); !slices.Equal(got, []string{"2"}) {
		t.Fatalf("expected removed {2}, got %v", got)
	}
	if got := s.ProgressPercentage(); got != 33 {
		t.Errorf("expected progress 33, got %d", got)
	}

	s.Pass()
	if got := s.ProgressPercentage(); got != 67 {
		t.Errorf("expected progress 67, got %d", got)
	}
	if s.IsCompleted() {
		t.Error("session must not complete before card 1 is passed")
	}

	s.Pass()
	if !s.IsCompleted() {
		t.Error("expected completion")
	}
	if got := s.ProgressPercentage(); got != 100 {
		t.Errorf("expected progress 100, got %d", got)
	}

	stats := s.CardStats()
	if stats["1"] != (CardStats{OKCount: 1, NGCount: 1}) {
		t.Errorf("unexpected stats for card 1: %+v", stats["1"])
	}
}

func TestThorough_FailPreservesRelativeOrder(t *testing.T) {
	tests := []struct {
		name   string
		moves  []Result
		expect []string
	}{
		{"single fail", []Result{Fail}, []string{"B", "C", "D", "E", "A"}},
		{"two fails", []Result{Fail, Fail}, []string{"C", "D", "E", "A", "B"}},
		{"fail pass fail", []Result{Fail, Pass, Fail}, []string{"D", "E", "A", "C"}},
		{"full rotation", []Result{Fail, Fail, Fail, Fail, Fail}, []string{"A", "B", "C", "D", "E"}},
		{"fail after passes", []Result{Pass, Pass, Pass, Pass, Fail}, []string{"E"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(makeCards("A", "B", "C", "D", "E"), Config{ThoroughLearning: true})
			for _, m := range tc.moves {
				s.Judge(m)
			}
			if got := deckIDs(s); !slices.Equal(got, tc.expect) {
				t.Errorf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestConservation_RandomSequences(t *testing.T) {
	input := []string{"a", "b", "c", "d", "e", "f", "g"}
	rng := rand.New(rand.NewPCG(7, 11))

	for _, cfg := range []Config{{}, {ThoroughLearning: true}, {Shuffle: true}, {Shuffle: true, ThoroughLearning: true}} {
		s := New(makeCards(input...), cfg, seeded())
		prev := s.ProgressPercentage()
		for i := 0; i < 60; i++ {
			result := Pass
			if rng.IntN(3) > 0 {
				result = Fail
			}
			s.Judge(result)
			assertConserved(t, s, input)

			got := s.ProgressPercentage()
			if got < prev {
				t.Fatalf("cfg %+v: progress decreased from %d to %d", cfg, prev, got)
			}
			prev = got
		}
	}
}

func TestStats_AccumulateAcrossRepeats(t *testing.T) {
	s := New(makeCards("1", "2"), Config{ThoroughLearning: true})

	s.Fail() // 1 -> tail
	s.Fail() // 2 -> tail
	s.Fail() // 1 -> tail
	s.Pass() // 2 done
	s.Pass() // 1 done

	stats := s.CardStats()
	if stats["1"] != (CardStats{OKCount: 1, NGCount: 2}) {
		t.Errorf("card 1: got %+v", stats["1"])
	}
	if stats["2"] != (CardStats{OKCount: 1, NGCount: 1}) {
		t.Errorf("card 2: got %+v", stats["2"])
	}
}

func TestJudge_NoopAfterCompletion(t *testing.T) {
	s := New(makeCards("1"), Config{})
	s.Pass()
	before := s.CardStats()

	s.Pass()
	s.Fail()

	if after := s.CardStats(); after["1"] != before["1"] || len(after) != len(before) {
		t.Errorf("stats changed after completion: %+v -> %+v", before, after)
	}
}

func TestReset_RestoresCanonicalState(t *testing.T) {
	for _, cfg := range []Config{{}, {ThoroughLearning: true}, {Shuffle: true, ThoroughLearning: true}} {
		s := New(makeCards("1", "2", "3", "4"), cfg, seeded())
		s.Fail()
		s.Pass()
		s.Fail()

		s.Reset()

		if got := deckIDs(s); !slices.Equal(got, []string{"1", "2", "3", "4"}) {
			t.Errorf("cfg %+v: expected canonical order after reset, got %v", cfg, got)
		}
		if len(s.CardStats()) != 0 {
			t.Errorf("cfg %+v: expected empty stats after reset", cfg)
		}
		if len(s.RemovedPermanently()) != 0 {
			t.Errorf("cfg %+v: expected nothing removed after reset", cfg)
		}
		if s.ProgressPercentage() != 0 || s.IsCompleted() {
			t.Errorf("cfg %+v: expected fresh progress after reset", cfg)
		}

		s.Reset()
		if got := deckIDs(s); !slices.Equal(got, []string{"1", "2", "3", "4"}) {
			t.Errorf("cfg %+v: second reset changed the deck: %v", cfg, got)
		}
	}
}

func TestShuffle_ToggleRestoresOrder(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{}, seeded())

	s.Configure(Config{Shuffle: true})
	got := deckIDs(s)
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []string{"1", "2", "3"}) {
		t.Fatalf("shuffled deck is not a permutation of the input: %v", got)
	}

	s.Configure(Config{})
	if got := deckIDs(s); !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("expected [1 2 3] after disabling shuffle, got %v", got)
	}
}

func TestShuffle_IdempotentConfigure(t *testing.T) {
	s := New(makeCards("1", "2", "3", "4", "5", "6", "7", "8"), Config{Shuffle: true}, seeded())
	first := deckIDs(s)

	for i := 0; i < 5; i++ {
		s.Configure(Config{Shuffle: true})
		if got := deckIDs(s); !slices.Equal(got, first) {
			t.Fatalf("repeated Configure reshuffled the deck: %v -> %v", first, got)
		}
	}
}

func TestShuffle_DoesNotResurrectJudgedCards(t *testing.T) {
	s := New(makeCards("1", "2", "3", "4"), Config{}, seeded())
	s.Pass()
	s.Fail()

	s.Configure(Config{Shuffle: true})
	s.Configure(Config{})

	if got := deckIDs(s); !slices.Equal(got, []string{"3", "4"}) {
		t.Errorf("expected [3 4], got %v", got)
	}
	if got := s.ProgressPercentage(); got != 50 {
		t.Errorf("expected progress 50, got %d", got)
	}
}

func TestConfigure_KeepsStats(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{ThoroughLearning: true}, seeded())
	s.Fail()
	s.Pass()

	s.Configure(Config{Shuffle: true, ThoroughLearning: true})
	s.Configure(Config{ThoroughLearning: true})

	stats := s.CardStats()
	if stats["1"].NGCount != 1 || stats["2"].OKCount != 1 {
		t.Errorf("stats lost across configuration changes: %+v", stats)
	}
	if got := s.RemovedPermanently(); !slices.Equal(got, []string{"2"}) {
		t.Errorf("expected removed {2}, got %v", got)
	}
}

func TestConfigure_ThoroughOnMidSession(t *testing.T) {
	s := New(makeCards("1", "2", "3", "4"), Config{})
	s.Pass() // 1 discarded in single-pass style
	s.Fail() // 2 discarded in single-pass style

	s.Configure(Config{ThoroughLearning: true})

	if got := deckIDs(s); !slices.Equal(got, []string{"3", "4"}) {
		t.Fatalf("expected remaining cards [3 4], got %v", got)
	}
	if len(s.RemovedPermanently()) != 0 {
		t.Errorf("discarded cards must not be counted as permanently passed")
	}
	if got := s.ProgressPercentage(); got != 50 {
		t.Errorf("expected progress 50, got %d", got)
	}

	s.Fail()
	if got := deckIDs(s); !slices.Equal(got, []string{"4", "3"}) {
		t.Fatalf("expected [4 3], got %v", got)
	}
	s.Pass()
	s.Pass()
	if !s.IsCompleted() {
		t.Error("expected completion once the remaining cards are passed")
	}
	if got := s.ProgressPercentage(); got != 100 {
		t.Errorf("expected progress 100, got %d", got)
	}
	assertConserved(t, s, []string{"1", "2", "3", "4"})
}

func TestConfigure_ThoroughOffMidSession(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{ThoroughLearning: true})
	s.Fail()
	s.Pass()

	s.Configure(Config{})

	if got := deckIDs(s); !slices.Equal(got, []string{"1", "3"}) {
		t.Fatalf("expected canonical remaining [1 3], got %v", got)
	}
	s.Fail()
	s.Fail()
	if !s.IsCompleted() {
		t.Error("expected completion in single-pass mode")
	}
}

func TestLoad_SameCardsKeepsState(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{})
	s.Pass()

	if s.Load(makeCards("1", "2", "3")) {
		t.Error("expected Load with the same cards to report no reinitialization")
	}

	if got := deckIDs(s); !slices.Equal(got, []string{"2", "3"}) {
		t.Errorf("reloading the same cards changed the deck: %v", got)
	}
	if s.CardStats()["1"].OKCount != 1 {
		t.Error("reloading the same cards lost stats")
	}
}

func TestLoad_DifferentCardsReinitializes(t *testing.T) {
	s := New(makeCards("1", "2", "3"), Config{ThoroughLearning: true})
	s.Fail()
	s.Pass()

	// Same length, different identity.
	if !s.Load(makeCards("x", "y", "z")) {
		t.Error("expected Load with new cards to report reinitialization")
	}

	if got := deckIDs(s); !slices.Equal(got, []string{"x", "y", "z"}) {
		t.Errorf("expected fresh deck [x y z], got %v", got)
	}
	if len(s.CardStats()) != 0 {
		t.Error("expected stats cleared for new cards")
	}
	if len(s.RemovedPermanently()) != 0 {
		t.Error("expected removed set cleared for new cards")
	}
	if s.ProgressPercentage() != 0 || s.IsCompleted() {
		t.Error("expected fresh progress for new cards")
	}
	if !s.Config().ThoroughLearning {
		t.Error("configuration should survive a card reload")
	}
}

func TestLoad_ShuffleAppliesToNewCards(t *testing.T) {
	s := New(makeCards("1", "2"), Config{Shuffle: true}, seeded())
	s.Load(makeCards("a", "b", "c", "d", "e", "f"))

	got := deckIDs(s)
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []string{"a", "b", "c", "d", "e", "f"}) {
		t.Fatalf("expected permutation of new cards, got %v", got)
	}

	s.Configure(Config{})
	if got := deckIDs(s); !slices.Equal(got, []string{"a", "b", "c", "d", "e", "f"}) {
		t.Errorf("expected canonical order of new cards, got %v", got)
	}
}

func TestProgressPercentage_Rounding(t *testing.T) {
	tests := []struct {
		total, judged int
		expected      int
	}{
		{3, 1, 33},
		{3, 2, 67},
		{8, 1, 13}, // 12.5 rounds up
		{6, 1, 17},
		{7, 3, 43},
		{200, 1, 1}, // 0.5 rounds up
		{201, 1, 0},
	}

	for _, tc := range tests {
		ids := make([]string, tc.total)
		for i := range ids {
			ids[i] = string(rune('A' + i%26)) + string(rune('a'+i/26))
		}
		s := New(makeCards(ids...), Config{})
		for i := 0; i < tc.judged; i++ {
			s.Pass()
		}
		if got := s.ProgressPercentage(); got != tc.expected {
			t.Errorf("%d/%d: expected %d, got %d", tc.judged, tc.total, tc.expected, got)
		}
	}
}

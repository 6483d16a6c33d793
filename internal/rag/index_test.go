package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/54b3r/fitcoach-go/internal/corpus"
)

// ----------------------------------------------------------------------------
// Fakes
// ----------------------------------------------------------------------------

// conceptEmbedder is a deterministic stand-in for a multilingual embedding
// model: each axis is a concept, and synonyms in either language count
// towards the same axis.
type conceptEmbedder struct {
	calls  atomic.Int32
	failAt int32 // fail on this call number (1-based); 0 never fails
	fitted atomic.Bool
}

var concepts = [][]string{
	{"push", "pompes"},
	{"squat"},
	{"upper", "haut du corps"},
	{"nutrition", "protein", "protéines"},
	{"recovery", "sleep", "récupération"},
}

func (e *conceptEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if n := e.calls.Add(1); e.failAt != 0 && n >= e.failAt {
		return nil, errors.New("model offline")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(concepts))
		for axis, words := range concepts {
			for _, w := range words {
				v[axis] += float32(strings.Count(lower, w))
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *conceptEmbedder) Fit([]string) error {
	e.fitted.Store(true)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIndex(t *testing.T, emb Embedder) *Index {
	t.Helper()
	x, err := NewIndex(IndexConfig{
		Corpus:   corpus.Default(),
		Embedder: emb,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return x
}

func positions(ms []Match) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = m.Doc.ID
	}
	return out
}

// ----------------------------------------------------------------------------
// Build / Search
// ----------------------------------------------------------------------------

func TestIndex_FrenchQueryFindsPushUps(t *testing.T) {
	t.Parallel()

	emb := &conceptEmbedder{}
	x := newTestIndex(t, emb)
	if err := x.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !emb.fitted.Load() {
		t.Error("Build must fit a Fitter embedder before embedding")
	}

	matches := x.Search(context.Background(), "comment faire des pompes", 5)
	if len(matches) != 5 {
		t.Fatalf("want 5 matches, got %d", len(matches))
	}
	top := matches[0]
	if top.Doc.Title != "Push-ups technique" || !top.Scored || top.Score <= 0.2 {
		t.Fatalf("top match: %+v", top)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not in descending order at %d: %v", i, matches)
		}
	}

	selected := Select(matches, 2, DefaultThreshold)
	if len(selected) == 0 || selected[0].Title != "Push-ups technique" {
		t.Errorf("selector dropped the push-up document: %v", corpus.Titles(selected))
	}
}

func TestIndex_UnavailableWithoutEmbedder(t *testing.T) {
	t.Parallel()

	x := newTestIndex(t, nil)
	err := x.Build(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Build error = %v, want ErrUnavailable", err)
	}
	if x.Available() {
		t.Error("index must not be available")
	}

	matches := x.Search(context.Background(), "anything", 3)
	if got := positions(matches); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("degraded search: got %v, want store order [1 2 3]", got)
	}
	for _, m := range matches {
		if m.Scored {
			t.Errorf("degraded match must be unscored: %+v", m)
		}
	}

	// Absent scores are never filtered.
	if got := Select(matches, 3, DefaultThreshold); len(got) != 3 {
		t.Errorf("selector filtered unscored matches: %v", corpus.Titles(got))
	}
}

func TestIndex_BuildFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	x := newTestIndex(t, &conceptEmbedder{failAt: 1})
	if err := x.Build(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Build error = %v, want ErrUnavailable", err)
	}
	if m := x.Search(context.Background(), "squat", 2); len(m) != 2 || m[0].Scored {
		t.Errorf("search after failed build: %+v", m)
	}
}

func TestIndex_QueryEmbedFailureDegrades(t *testing.T) {
	t.Parallel()

	// Call 1 is the corpus build; call 2 is the query.
	x := newTestIndex(t, &conceptEmbedder{failAt: 2})
	if err := x.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	m := x.Search(context.Background(), "squat", 2)
	if got := positions(m); !slices.Equal(got, []int{1, 2}) || m[0].Scored {
		t.Errorf("degraded search: got %v scored=%v", got, m[0].Scored)
	}
}

func TestIndex_SearchBounds(t *testing.T) {
	t.Parallel()

	x := newTestIndex(t, &conceptEmbedder{})
	if err := x.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		k    int
		want int
	}{
		{-3, 0},
		{0, 0},
		{1, 1},
		{5, 5},
		{100, 5},
	}
	for _, tc := range cases {
		if got := len(x.Search(context.Background(), "squat", tc.k)); got != tc.want {
			t.Errorf("Search(k=%d): %d matches, want %d", tc.k, got, tc.want)
		}
	}
}

func TestIndex_TiesKeepStoreOrder(t *testing.T) {
	t.Parallel()

	x := newTestIndex(t, &conceptEmbedder{})
	if err := x.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	// No concept in the query: every document scores zero.
	m := x.Search(context.Background(), "bonjour", 5)
	if got := positions(m); !slices.Equal(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("tied results: got %v, want store order", got)
	}
	for _, mm := range m {
		if !mm.Scored || mm.Score != 0 {
			t.Errorf("want scored zero, got %+v", mm)
		}
	}
	if got := Select(m, 2, DefaultThreshold); len(got) != 0 {
		t.Errorf("zero scores must be filtered, got %v", corpus.Titles(got))
	}
}

func TestIndex_BuildIsIdempotent(t *testing.T) {
	t.Parallel()

	x := newTestIndex(t, &conceptEmbedder{})
	ctx := context.Background()
	if err := x.Build(ctx); err != nil {
		t.Fatal(err)
	}
	first := x.Search(ctx, "upper body push", 5)
	if err := x.Build(ctx); err != nil {
		t.Fatal(err)
	}
	second := x.Search(ctx, "upper body push", 5)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Doc.ID != second[i].Doc.ID || first[i].Score != second[i].Score {
			t.Errorf("rank %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// ----------------------------------------------------------------------------
// MemoryStore
// ----------------------------------------------------------------------------

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Upsert(ctx, [][]float32{{1}}); err == nil {
		t.Error("upsert before reset must fail")
	}
	if err := s.Reset(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, [][]float32{{1, 0}, {0, 1}, {1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, [][]float32{{1, 0, 0}}); err == nil {
		t.Error("dimension mismatch must fail")
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []Hit{{Position: 0, Score: 1}, {Position: 2, Score: 1}, {Position: 1, Score: 0}}
	if !slices.Equal(hits, want) {
		t.Errorf("hits: got %v, want %v", hits, want)
	}
	if _, err := s.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("query dimension mismatch must fail")
	}
}

// ----------------------------------------------------------------------------
// Select
// ----------------------------------------------------------------------------

func TestSelect(t *testing.T) {
	t.Parallel()

	doc := func(id int) corpus.Document { return corpus.Document{ID: id, Title: "d"} }
	scored := []Match{
		{Doc: doc(1), Score: 0.9, Scored: true},
		{Doc: doc(2), Score: 0.1, Scored: true},
		{Doc: doc(3), Score: 0.5, Scored: true},
	}
	unscored := []Match{{Doc: doc(1)}, {Doc: doc(2)}, {Doc: doc(3)}}

	tests := []struct {
		name    string
		matches []Match
		n       int
		theta   float32
		want    []int
	}{
		{"cap then filter", scored, 2, 0.2, []int{1}},
		{"cap larger than input", scored, 10, 0.2, []int{1, 3}},
		{"threshold inclusive", scored, 3, 0.5, []int{1, 3}},
		{"zero threshold keeps all", scored, 3, 0, []int{1, 2, 3}},
		{"unscored kept", unscored, 2, 0.2, []int{1, 2}},
		{"zero cap", scored, 0, 0.2, []int{}},
		{"negative cap", scored, -1, 0.2, []int{}},
		{"empty input", nil, 2, 0.2, []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Select(tc.matches, tc.n, tc.theta)
			ids := make([]int, len(got))
			for i, d := range got {
				ids[i] = d.ID
			}
			if !slices.Equal(ids, tc.want) {
				t.Errorf("got %v, want %v", ids, tc.want)
			}
			if len(got) > max(tc.n, 0) {
				t.Errorf("selected %d docs, cap %d", len(got), tc.n)
			}
		})
	}
}

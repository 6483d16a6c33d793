package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/rag"
)

// ----------------------------------------------------------------------------
// TF-IDF
// ----------------------------------------------------------------------------

func TestTFIDF_NotFitted(t *testing.T) {
	t.Parallel()

	if _, err := NewTFIDF().Embed(context.Background(), []string{"x"}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("want ErrNotFitted, got %v", err)
	}
}

func TestTFIDF_FitAndEmbed(t *testing.T) {
	t.Parallel()

	e := NewTFIDF()
	corpus := []string{
		"Push-ups technique hands shoulder-width apart",
		"Squat fundamentals sit back like sitting in chair",
		"Recovery essentials sleep nightly",
	}
	if err := e.Fit(corpus); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if e.Dimensions() == 0 {
		t.Fatal("Dimensions must be > 0 after Fit")
	}

	vecs, err := e.Embed(context.Background(), []string{"squat chair", "the and of", ""})
	if err != nil {
		t.Fatal(err)
	}
	if n := l2(vecs[0]); math.Abs(n-1) > 1e-5 {
		t.Errorf("in-vocabulary vector not unit length: %f", n)
	}
	if l2(vecs[1]) != 0 || l2(vecs[2]) != 0 {
		t.Error("stopword-only and empty texts must embed to the zero vector")
	}

	docs, _ := e.Embed(context.Background(), corpus)
	if dot(vecs[0], docs[1]) <= dot(vecs[0], docs[0]) {
		t.Error("squat query should be closest to the squat document")
	}
}

func TestTFIDF_FitErrors(t *testing.T) {
	t.Parallel()

	if err := NewTFIDF().Fit(nil); err == nil {
		t.Error("empty corpus must fail")
	}
	if err := NewTFIDF().Fit([]string{"123 456", "the"}); err == nil {
		t.Error("tokenless corpus must fail")
	}
}

func TestTFIDF_TokenizeFrench(t *testing.T) {
	t.Parallel()

	e := NewTFIDF()
	tests := []struct {
		text string
		want []string
	}{
		{"Comment faire des pompes ?", []string{"pompes", "push", "ups"}},
		{"Push-ups", []string{"push", "ups"}},
		{"après l'entraînement", []string{"après", "entraînement", "workout"}},
		{"Combien d'heures de sommeil", []string{"combien", "heures", "sommeil", "sleep"}},
		{"Les Séries", []string{"séries", "sets"}},
	}
	for _, tc := range tests {
		if got := e.tokenize(tc.text); strings.Join(got, " ") != strings.Join(tc.want, " ") {
			t.Errorf("tokenize(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

// French questions must retrieve from the built-in English corpus with the
// default embedder and threshold.
func TestTFIDF_FrenchQuestionsReachDefaultCorpus(t *testing.T) {
	t.Parallel()

	emb, err := New(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := rag.NewIndex(rag.IndexConfig{Corpus: corpus.Default(), Embedder: emb})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		question string
		want     string
	}{
		{"Comment faire des pompes correctement ?", "Push-ups technique"},
		{"comment faire des pompes", "Push-ups technique"},
		{"Un programme de squat ?", "Squat fundamentals"},
		{"Que manger après l'entraînement ?", "Nutrition basics"},
		{"Combien d'heures de sommeil pour récupérer ?", "Recovery essentials"},
		{"Comment muscler le haut du corps ?", "Upper body strength"},
	}
	for _, tc := range tests {
		matches := idx.Search(context.Background(), tc.question, 3)
		if len(matches) == 0 || matches[0].Doc.Title != tc.want {
			t.Errorf("%q: top match = %v, want %q", tc.question, matches, tc.want)
			continue
		}
		docs := rag.Select(matches, 3, rag.DefaultThreshold)
		if len(docs) == 0 || docs[0].Title != tc.want {
			t.Errorf("%q: selected %d docs over threshold %.2f (top score %.3f)",
				tc.question, len(docs), rag.DefaultThreshold, matches[0].Score)
		}
	}
}

// ----------------------------------------------------------------------------
// Ollama
// ----------------------------------------------------------------------------

func TestOllamaEmbedder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model: %q", req.Model)
		}
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || vecs[1][1] != 2 {
		t.Errorf("vectors: %v", vecs)
	}
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"}).
		Embed(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("want error carrying server message, got %v", err)
	}
}

// ----------------------------------------------------------------------------
// OpenAI
// ----------------------------------------------------------------------------

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header: %q", got)
		}
		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-small" || req.Dimensions != 2 || len(req.Input) != 2 {
			t.Errorf("request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "sk-test",
		Model:      "text-embedding-3-small",
		Dimensions: 2,
	})
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not placed by index: %v", vecs)
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"}).
		Embed(context.Background(), []string{"x"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("want 401 API error, got %v", err)
	}
}

// ----------------------------------------------------------------------------
// Cache
// ----------------------------------------------------------------------------

type countingEmbedder struct {
	calls  atomic.Int32
	texts  atomic.Int32
	fitted atomic.Bool
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int32(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Fit([]string) error {
	c.fitted.Store(true)
	return nil
}

func TestCached_HitsAndMisses(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	lookups := NewCacheMetrics(reg)
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 8, lookups)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := c.Embed(ctx, []string{"a", "bb"}); err != nil {
		t.Fatal(err)
	}
	vecs, err := c.Embed(ctx, []string{"bb", "ccc", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 2 || vecs[1][0] != 3 || vecs[2][0] != 1 {
		t.Errorf("vectors: %v", vecs)
	}
	if inner.calls.Load() != 2 || inner.texts.Load() != 3 {
		t.Errorf("inner saw %d calls / %d texts, want 2 / 3", inner.calls.Load(), inner.texts.Load())
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("miss")); got != 3 {
		t.Errorf("misses = %v, want 3", got)
	}

	// Mutating a returned vector must not poison the cache.
	vecs[0][0] = 99
	again, _ := c.Embed(ctx, []string{"bb"})
	if again[0][0] != 2 {
		t.Errorf("cache poisoned: %v", again)
	}
}

func TestCached_FitPurges(t *testing.T) {
	t.Parallel()

	inner := &countingEmbedder{}
	c, _ := NewCached(inner, 8, nil)
	_, _ = c.Embed(context.Background(), []string{"a"})
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
	if err := c.Fit([]string{"corpus"}); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 || !inner.fitted.Load() {
		t.Errorf("Fit must purge and forward: len=%d fitted=%v", c.Len(), inner.fitted.Load())
	}
	var _ rag.Fitter = c
}

// ----------------------------------------------------------------------------
// Factory
// ----------------------------------------------------------------------------

func TestNew_Backends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr string
	}{
		{name: "default tfidf", cfg: Config{}},
		{name: "ollama", cfg: Config{Provider: BackendOllama}},
		{name: "openai", cfg: Config{Provider: BackendOpenAI, APIKey: "k"}},
		{name: "azure", cfg: Config{Provider: BackendAzure, APIKey: "k", Endpoint: "https://x.openai.azure.com"}},
		{name: "none", cfg: Config{Provider: BackendNone}, wantNil: true},
		{name: "uncached", cfg: Config{Provider: BackendTFIDF, CacheSize: -1}},
		{name: "openai without key", cfg: Config{Provider: BackendOpenAI}, wantErr: "OPENAI_API_KEY"},
		{name: "azure without endpoint", cfg: Config{Provider: BackendAzure, APIKey: "k"}, wantErr: "AZURE_OPENAI_ENDPOINT"},
		{name: "unknown", cfg: Config{Provider: "bedrock"}, wantErr: "unknown backend"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e, err := New(tc.cfg, nil)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if (e == nil) != tc.wantNil {
				t.Errorf("embedder nil = %v, want %v", e == nil, tc.wantNil)
			}
		})
	}
}

func TestNew_UncachedTFIDF(t *testing.T) {
	t.Parallel()

	e, err := New(Config{Provider: BackendTFIDF, CacheSize: -1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*TFIDF); !ok {
		t.Errorf("want *TFIDF, got %T", e)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "OpenAI")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("EMBEDDING_CACHE_SIZE", "32")

	cfg := ConfigFromEnv()
	if cfg.Provider != BackendOpenAI || cfg.APIKey != "sk-env" || cfg.CacheSize != 32 {
		t.Errorf("cfg: %+v", cfg)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"gpt-4o", "distilgpt2", "Lukamac/PlayPart-AI-Personal-Trainer"} {
		if !looksLikeChatModel(m) {
			t.Errorf("%q should look like a chat model", m)
		}
	}
	for _, m := range []string{"nomic-embed-text", "text-embedding-3-small"} {
		if looksLikeChatModel(m) {
			t.Errorf("%q should not look like a chat model", m)
		}
	}
}

func l2(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

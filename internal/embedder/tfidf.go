package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrNotFitted is returned by TFIDF.Embed before Fit has been called.
var ErrNotFitted = errors.New("embedder: tfidf not fitted")

// tokenPattern matches letter runs, keeping internal apostrophes ("d'épaules").
var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// TFIDF implements rag.Embedder and rag.Fitter with a TF-IDF vectoriser fitted
// on the corpus. It needs no network and no model files, which makes it the
// default backend. Vectors are L2-normalised. It is safe for concurrent use.
type TFIDF struct {
	// mu guards vocabulary and idf, which Fit replaces.
	mu sync.RWMutex
	// vocabulary maps a term to its vector axis.
	vocabulary map[string]int
	// idf holds the smoothed inverse document frequency per axis.
	idf []float64
	// stopwords are ignored during tokenisation.
	stopwords map[string]struct{}
	// glossary maps a term to the corpus terms it also stands for.
	glossary map[string][]string
}

// NewTFIDF returns an unfitted TF-IDF embedder. French fitness terms are
// expanded to their English equivalents so French questions reach the
// English corpus.
func NewTFIDF() *TFIDF {
	return &TFIDF{stopwords: defaultStopwords(), glossary: frenchGlossary()}
}

// Fit builds the vocabulary and IDF weights from corpus. Refitting replaces
// the previous model.
func (e *TFIDF) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("embedder: tfidf: empty corpus")
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return errors.New("embedder: tfidf: no tokens found in corpus")
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	e.mu.Lock()
	e.vocabulary = vocab
	e.idf = idf
	e.mu.Unlock()
	return nil
}

// Dimensions returns the vocabulary size, or 0 before Fit.
func (e *TFIDF) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// Embed converts texts into TF-IDF vectors. Terms outside the fitted
// vocabulary are ignored, so an off-vocabulary text yields the zero vector.
func (e *TFIDF) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.vocabulary == nil {
		return nil, ErrNotFitted
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *TFIDF) vector(text string) []float32 {
	vec := make([]float32, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}

	var norm float64
	weights := make(map[int]float64, len(tf))
	for idx, count := range tf {
		w := float64(count) / float64(total) * e.idf[idx]
		weights[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for idx, w := range weights {
		vec[idx] = float32(w / norm)
	}
	return vec
}

// elision matches a French elided article or pronoun ("l'", "qu'").
var elision = regexp.MustCompile(`^(?:l|d|j|m|n|s|t|c|qu)['’]`)

// tokenize lowercases text, drops elisions and stopwords, and follows each
// glossary term with its translations. The original term is kept.
func (e *TFIDF) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = elision.ReplaceAllString(t, "")
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
		out = append(out, e.glossary[t]...)
	}
	return out
}

// String identifies the backend in logs.
func (e *TFIDF) String() string {
	return fmt.Sprintf("tfidf(dims=%d)", e.Dimensions())
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		// English
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "it", "this", "that", "these", "those",
		"from", "so", "into", "about", "how", "what", "do", "does", "i", "my", "you", "your", "can",
		// French
		"le", "la", "les", "un", "une", "des", "du", "de", "et", "ou", "en", "au", "aux", "pour",
		"par", "sur", "avec", "est", "sont", "je", "tu", "il", "elle", "nous", "vous", "mon", "ma",
		"mes", "ce", "cette", "comment", "quel", "quelle", "que", "qui", "faire",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// frenchGlossary covers the training vocabulary of French questions. Values
// are lowercase corpus tokens; "push ups" matches "push-ups".
func frenchGlossary() map[string][]string {
	g := map[string][]string{}
	add := func(to string, from ...string) {
		for _, f := range from {
			g[f] = append(g[f], strings.Fields(to)...)
		}
	}
	add("push ups", "pompe", "pompes")
	add("pull ups", "traction", "tractions")
	add("squats", "squat", "flexion", "flexions", "accroupissement")
	add("dips", "dip")
	add("glutes", "fessier", "fessiers", "fesses")
	add("quads", "cuisse", "cuisses", "quadriceps")
	add("calves", "mollet", "mollets")
	add("back", "dos")
	add("arms", "bras")
	add("shoulders", "épaule", "épaules", "epaule", "epaules")
	add("chest", "pectoraux", "pectoral", "pecs", "poitrine")
	add("triceps", "triceps")
	add("upper", "haut")
	add("body", "corps")
	add("strength", "force", "musculation", "muscler", "renforcement")
	add("nutrition diet", "alimentation", "nutrition", "régime", "regime")
	add("diet", "manger", "repas")
	add("protein", "protéine", "protéines", "proteine", "proteines")
	add("carbohydrates", "glucides")
	add("fats", "lipides", "graisses")
	add("hydrated", "eau", "hydratation", "hydrater", "boire")
	add("recovery", "récupération", "recuperation", "récupérer", "recuperer")
	add("rest", "repos", "reposer")
	add("sleep", "sommeil", "dormir")
	add("stretching", "étirement", "étirements", "etirement", "etirements")
	add("sessions", "séance", "séances", "seance", "seances")
	add("workout", "entraînement", "entrainement", "entraînements", "entrainements")
	add("exercise", "exercice", "exercices")
	add("beginners", "débutant", "débutants", "debutant", "debutants", "débutante")
	add("reps", "répétition", "répétitions", "repetition", "repetitions")
	add("sets", "série", "séries", "serie", "series")
	add("form", "posture", "forme")
	add("progress", "progrès", "progresser", "progression")
	return g
}

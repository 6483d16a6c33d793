package corpus

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCorpus []byte

// Store is an immutable, ordered collection of documents. Order is the load
// order and is significant: it breaks ranking ties and defines the unranked
// result set when semantic search is unavailable.
type Store struct {
	// docs holds the documents in load order.
	docs []Document
	// byID indexes docs by Document.ID.
	byID map[int]int
}

// Filter narrows an exercise listing. Zero-valued fields do not filter.
type Filter struct {
	// Difficulty keeps only documents with exactly this difficulty.
	Difficulty Difficulty
	// MuscleGroups keeps only documents tagged with at least one of these groups.
	MuscleGroups []string
}

// Match reports whether d passes the filter.
func (f Filter) Match(d Document) bool {
	if f.Difficulty != DifficultyNone && d.Difficulty != f.Difficulty {
		return false
	}
	if len(f.MuscleGroups) > 0 && !d.HasAnyTag(f.MuscleGroups) {
		return false
	}
	return true
}

// Categories summarises the facets present in the corpus.
type Categories struct {
	// MuscleGroups is the sorted set of all document tags.
	MuscleGroups []string `json:"muscle_groups"`
	// Difficulties is the sorted set of difficulties in use.
	Difficulties []string `json:"difficulties"`
	// Equipment is the sorted set of equipment values in use.
	Equipment []string `json:"equipment"`
	// Categories is the sorted set of non-exercise categories.
	Categories []string `json:"categories"`
	// Total is the number of documents in the corpus.
	Total int `json:"total_exercises"`
}

// New validates docs and returns a Store holding a private copy of them.
func New(docs []Document) (*Store, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus: at least one document is required")
	}

	s := &Store{
		docs: make([]Document, 0, len(docs)),
		byID: make(map[int]int, len(docs)),
	}
	for i, d := range docs {
		if strings.TrimSpace(d.Title) == "" {
			return nil, fmt.Errorf("corpus: document #%d has an empty title", i)
		}
		if _, dup := s.byID[d.ID]; dup {
			return nil, fmt.Errorf("corpus: duplicate document id %d", d.ID)
		}
		diff, err := ParseDifficulty(string(d.Difficulty))
		if err != nil {
			return nil, fmt.Errorf("corpus: document %d: %w", d.ID, err)
		}
		d.Difficulty = diff
		s.byID[d.ID] = len(s.docs)
		s.docs = append(s.docs, d.clone())
	}
	return s, nil
}

// Parse decodes a YAML list of documents into a Store.
func Parse(data []byte) (*Store, error) {
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("corpus: parse: %w", err)
	}
	return New(docs)
}

// LoadFile reads a YAML corpus from path.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in sample corpus. It panics if the embedded data
// is invalid, which only a broken build can cause.
func Default() *Store {
	s, err := Parse(defaultCorpus)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// All returns a copy of every document in store order.
func (s *Store) All() []Document {
	out := make([]Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.clone()
	}
	return out
}

// At returns the document at position i in store order.
func (s *Store) At(i int) (Document, bool) {
	if i < 0 || i >= len(s.docs) {
		return Document{}, false
	}
	return s.docs[i].clone(), true
}

// Get returns the document with the given ID.
func (s *Store) Get(id int) (Document, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Document{}, false
	}
	return s.docs[i].clone(), true
}

// First returns the first min(k, Len()) documents in store order.
func (s *Store) First(k int) []Document {
	k = max(0, min(k, len(s.docs)))
	out := make([]Document, k)
	for i := range k {
		out[i] = s.docs[i].clone()
	}
	return out
}

// Categories returns the facet summary of the corpus.
func (s *Store) Categories() Categories {
	muscles := map[string]struct{}{}
	diffs := map[string]struct{}{}
	equip := map[string]struct{}{}
	cats := map[string]struct{}{}

	for _, d := range s.docs {
		for _, t := range d.Tags {
			muscles[t] = struct{}{}
		}
		if d.Difficulty != DifficultyNone {
			diffs[string(d.Difficulty)] = struct{}{}
		}
		if d.Equipment != "" {
			equip[d.Equipment] = struct{}{}
		}
		if d.Category != "" {
			cats[d.Category] = struct{}{}
		}
	}

	return Categories{
		MuscleGroups: sortedKeys(muscles),
		Difficulties: sortedKeys(diffs),
		Equipment:    sortedKeys(equip),
		Categories:   sortedKeys(cats),
		Total:        len(s.docs),
	}
}

// Titles returns the titles of docs, in order.
func Titles(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return slices.Clip(out)
}

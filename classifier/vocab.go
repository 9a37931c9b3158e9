package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// OOVToken is the reserved out-of-vocabulary token.
const OOVToken = "<OOV>"

const (
	padIndex = 0
	oovIndex = 1
)

// Vocabulary maps tokens to integer indices. Index 0 is reserved for padding
// and index 1 for the out-of-vocabulary token; real tokens start at 2.
type Vocabulary struct {
	Index   map[string]int
	maxSize int
}

// NewVocabulary returns an unfitted vocabulary capped at maxSize indices.
func NewVocabulary(maxSize int) *Vocabulary {
	return &Vocabulary{maxSize: maxSize}
}

// Fit builds the token index from the given texts, ordered by descending
// token frequency with ties broken by first appearance. Fitting the same
// texts twice yields the same index.
func (v *Vocabulary) Fit(texts []string) {
	type entry struct {
		token string
		count int
		seen  int
	}
	counts := make(map[string]*entry)
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			e, ok := counts[tok]
			if !ok {
				e = &entry{token: tok, seen: len(counts)}
				counts[tok] = e
			}
			e.count++
		}
	}

	entries := make([]*entry, 0, len(counts))
	for _, e := range counts {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].seen < entries[j].seen
	})

	v.Index = make(map[string]int, len(entries)+1)
	v.Index[OOVToken] = oovIndex
	next := oovIndex + 1
	for _, e := range entries {
		if next >= v.maxSize {
			break
		}
		v.Index[e.token] = next
		next++
	}
}

// Lookup returns the index for a token, or the OOV index for unknown tokens.
func (v *Vocabulary) Lookup(token string) int {
	if i, ok := v.Index[token]; ok {
		return i
	}
	return oovIndex
}

// Size returns the index capacity, which is also the embedding row count.
func (v *Vocabulary) Size() int { return v.maxSize }

// Save writes the token->index mapping as JSON.
func (v *Vocabulary) Save(path string) error {
	payload, err := json.Marshal(v.Index)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// LoadVocabulary reads a token->index mapping written by Save.
func LoadVocabulary(path string, maxSize int) (*Vocabulary, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	index := make(map[string]int)
	if err := json.Unmarshal(payload, &index); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return &Vocabulary{Index: index, maxSize: maxSize}, nil
}

package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// LabelEncoder is a bijective mapping between label strings and contiguous
// class indices. Fit sorts the unique training labels so index assignment is
// deterministic for a fixed label set.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// Fit assigns indices to the sorted unique labels.
func (e *LabelEncoder) Fit(labels []string) {
	seen := make(map[string]struct{}, len(labels))
	e.Classes = e.Classes[:0]
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		e.Classes = append(e.Classes, label)
	}
	sort.Strings(e.Classes)
	e.index = make(map[string]int, len(e.Classes))
	for i, label := range e.Classes {
		e.index[label] = i
	}
}

// Transform maps labels to class indices. A label outside the fitted set is a
// fatal error; there is no unknown-class bucket.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, label := range labels {
		idx, ok := e.index[label]
		if !ok {
			return nil, fmt.Errorf("label %q not seen during fit", label)
		}
		out[i] = idx
	}
	return out, nil
}

// Decode maps class indices back to label strings.
func (e *LabelEncoder) Decode(indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(e.Classes) {
			return nil, fmt.Errorf("class index %d out of range [0,%d)", idx, len(e.Classes))
		}
		out[i] = e.Classes[idx]
	}
	return out, nil
}

// Save writes the index->label mapping with stringified integer keys.
func (e *LabelEncoder) Save(path string) error {
	classes := make(map[string]string, len(e.Classes))
	for i, label := range e.Classes {
		classes[strconv.Itoa(i)] = label
	}
	payload, err := json.Marshal(classes)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// LoadLabelEncoder reads an index->label mapping written by Save.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label map: %w", err)
	}
	classes := make(map[string]string)
	if err := json.Unmarshal(payload, &classes); err != nil {
		return nil, fmt.Errorf("decode label map: %w", err)
	}
	enc := &LabelEncoder{
		Classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	for i := range enc.Classes {
		label, ok := classes[strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("label map missing class %d", i)
		}
		enc.Classes[i] = label
		enc.index[label] = i
	}
	return enc, nil
}

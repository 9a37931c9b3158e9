package corpus

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile loads samples from a CSV or JSON file, selected by extension.
func ReadFile(path string) ([]Sample, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".json":
		return ReadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported corpus file %s", path)
	}
}

// ReadCSV loads samples from a two-column CSV (text, label). A header row of
// exactly "text,label" is skipped.
func ReadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	var samples []Sample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 && record[0] == "text" && record[1] == "label" {
			continue
		}
		samples = append(samples, Sample{Text: record[0], Label: record[1]})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples in %s", path)
	}
	return samples, nil
}

// ReadJSON loads samples from a JSON array of {"text": ..., "label": ...}.
func ReadJSON(path string) ([]Sample, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var samples []Sample
	if err := json.Unmarshal(payload, &samples); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples in %s", path)
	}
	return samples, nil
}

package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	samples := []Sample{
		{Text: "great service", Label: "positive"},
		{Text: "terrible service", Label: "negative"},
		{Text: "would buy again", Label: "positive"},
	}
	if err := store.Add(samples); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.All()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, samples) {
		t.Fatalf("expected %v, got %v", samples, got)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 samples, got %d", n)
	}

	labels, err := store.Labels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(labels, []string{"negative", "positive"}) {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestSplitDeterministic(t *testing.T) {
	samples := make([]Sample, 20)
	for i := range samples {
		samples[i] = Sample{Text: string(rune('a' + i)), Label: "x"}
	}

	train1, test1 := Split(samples, 0.25, 42)
	train2, test2 := Split(samples, 0.25, 42)
	if !reflect.DeepEqual(train1, train2) || !reflect.DeepEqual(test1, test2) {
		t.Fatal("same seed produced different splits")
	}
	if len(test1) != 5 || len(train1) != 15 {
		t.Fatalf("expected 15/5 split, got %d/%d", len(train1), len(test1))
	}

	_, test3 := Split(samples, 0.25, 7)
	if reflect.DeepEqual(test1, test3) {
		t.Fatal("different seeds produced identical splits")
	}
}

func TestUnzip(t *testing.T) {
	texts, labels := Unzip([]Sample{{Text: "a", Label: "1"}, {Text: "b", Label: "2"}})
	if !reflect.DeepEqual(texts, []string{"a", "b"}) {
		t.Fatalf("unexpected texts: %v", texts)
	}
	if !reflect.DeepEqual(labels, []string{"1", "2"}) {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "text,label\ngood stuff,positive\nbad stuff,negative\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Sample{
		{Text: "good stuff", Label: "positive"},
		{Text: "bad stuff", Label: "negative"},
	}
	if !reflect.DeepEqual(samples, want) {
		t.Fatalf("expected %v, got %v", want, samples)
	}
}

func TestReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	content := `[{"text":"good stuff","label":"positive"},{"text":"bad stuff","label":"negative"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 || samples[0].Label != "positive" {
		t.Fatalf("unexpected samples: %v", samples)
	}
}

func TestReadFileUnknownExtension(t *testing.T) {
	if _, err := ReadFile("data.xml"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

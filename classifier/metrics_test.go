package classifier

import (
	"math"
	"testing"
)

func TestAccuracy(t *testing.T) {
	if got := Accuracy([]int{0, 1, 1, 0}, []int{0, 1, 0, 0}); got != 0.75 {
		t.Fatalf("expected accuracy 0.75, got %f", got)
	}
	if got := Accuracy(nil, nil); got != 0 {
		t.Fatalf("expected accuracy 0 for empty sets, got %f", got)
	}
}

func TestReport(t *testing.T) {
	truth := []int{0, 0, 1, 1}
	pred := []int{0, 1, 1, 1}
	report := Report(pred, truth, []string{"neg", "pos"})

	if len(report) != 2 {
		t.Fatalf("expected 2 class entries, got %d", len(report))
	}

	neg := report[0]
	if neg.Label != "neg" || neg.Support != 2 {
		t.Fatalf("unexpected neg entry: %+v", neg)
	}
	if neg.Precision != 1 || neg.Recall != 0.5 {
		t.Fatalf("unexpected neg precision/recall: %+v", neg)
	}

	pos := report[1]
	if math.Abs(pos.Precision-2.0/3.0) > 1e-9 || pos.Recall != 1 {
		t.Fatalf("unexpected pos precision/recall: %+v", pos)
	}
	wantF1 := 2 * (2.0 / 3.0) * 1 / ((2.0 / 3.0) + 1)
	if math.Abs(pos.F1-wantF1) > 1e-9 {
		t.Fatalf("unexpected pos F1: %f want %f", pos.F1, wantF1)
	}
}

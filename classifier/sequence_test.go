package classifier

import "testing"

func TestSequenceFixedLength(t *testing.T) {
	v := NewVocabulary(100)
	v.Fit([]string{"one two three four five six seven eight"})

	const maxLen = 5
	cases := []string{
		"",
		"one",
		"one two three",
		"one two three four five",
		"one two three four five six seven eight",
	}
	for _, text := range cases {
		seq := v.Sequence(text, maxLen)
		if len(seq) != maxLen {
			t.Fatalf("text %q: expected %d entries, got %d", text, maxLen, len(seq))
		}
	}
}

func TestSequencePaddingAndTruncation(t *testing.T) {
	v := NewVocabulary(100)
	v.Fit([]string{"a b c d"})

	seq := v.Sequence("a b", 4)
	if seq[0] == 0 || seq[1] == 0 {
		t.Fatalf("expected leading tokens, got %v", seq)
	}
	if seq[2] != 0 || seq[3] != 0 {
		t.Fatalf("expected right zero padding, got %v", seq)
	}

	long := v.Sequence("a b c d", 2)
	if long[0] != v.Lookup("a") || long[1] != v.Lookup("b") {
		t.Fatalf("expected right truncation keeping the head, got %v", long)
	}
}

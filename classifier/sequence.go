package classifier

// Sequence reduces text to a fixed-length vector of token indices, truncated
// or zero-padded on the right to maxLen.
func (v *Vocabulary) Sequence(text string, maxLen int) []int {
	seq := make([]int, maxLen)
	for i, tok := range Tokenize(text) {
		if i >= maxLen {
			break
		}
		seq[i] = v.Lookup(tok)
	}
	return seq
}

// Sequences applies Sequence to every text.
func (v *Vocabulary) Sequences(texts []string, maxLen int) [][]int {
	out := make([][]int, len(texts))
	for i, text := range texts {
		out[i] = v.Sequence(text, maxLen)
	}
	return out
}

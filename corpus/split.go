package corpus

import (
	"math"
	"math/rand"
)

// Split shuffles samples with the given seed and partitions them into train
// and test sets. A testRatio outside (0,1) falls back to 0.2. The same seed
// and input order always produce the same split.
func Split(samples []Sample, testRatio float64, seed int64) (train, test []Sample) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(samples))

	split := int(math.Round(float64(len(samples)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			train = append(train, samples[idx])
		} else {
			test = append(test, samples[idx])
		}
	}
	return train, test
}

// Unzip separates samples into parallel text and label slices.
func Unzip(samples []Sample) (texts, labels []string) {
	texts = make([]string, len(samples))
	labels = make([]string, len(samples))
	for i, sample := range samples {
		texts[i] = sample.Text
		labels[i] = sample.Label
	}
	return texts, labels
}

package classifier

// Accuracy returns the fraction of predictions matching the truth.
func Accuracy(pred, truth []int) float64 {
	if len(truth) == 0 || len(pred) != len(truth) {
		return 0
	}
	var correct int
	for i := range pred {
		if pred[i] == truth[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

// Report computes per-class precision, recall, F1 and support.
func Report(pred, truth []int, classes []string) []ClassReport {
	report := make([]ClassReport, len(classes))
	for class := range classes {
		var tp, predicted, actual int
		for i := range truth {
			if i < len(pred) && pred[i] == class {
				predicted++
				if truth[i] == class {
					tp++
				}
			}
			if truth[i] == class {
				actual++
			}
		}
		r := ClassReport{Label: classes[class], Support: actual}
		if predicted > 0 {
			r.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			r.Recall = float64(tp) / float64(actual)
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		report[class] = r
	}
	return report
}

func evaluate(trainPred, trainTruth, testPred, testTruth []int, classes []string) *Metrics {
	return &Metrics{
		TrainAccuracy: Accuracy(trainPred, trainTruth),
		TestAccuracy:  Accuracy(testPred, testTruth),
		Report:        Report(testPred, testTruth, classes),
	}
}

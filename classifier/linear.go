package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"textclass/logging"
	"textclass/onnx"
)

const (
	linearMaxIter = 1000
	linearLR      = 0.5
	linearTol     = 1e-6
	linearL2      = 1e-4
)

// tfidfVectorizer maps text to L2-normalized TF-IDF feature vectors over a
// capped vocabulary fit on the training partition only.
type tfidfVectorizer struct {
	Vocab map[string]int `json:"vocabulary"`
	IDF   []float64      `json:"idf"`

	maxFeatures int
}

func (v *tfidfVectorizer) fit(texts []string) {
	counts := make(map[string]int)
	docFreq := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(text) {
			counts[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}
	// Most frequent first, alphabetical among ties; final indices are
	// assigned alphabetically over the selected tokens.
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	limit := len(tokens)
	if v.maxFeatures > 0 && limit > v.maxFeatures {
		limit = v.maxFeatures
	}
	selected := append([]string{}, tokens[:limit]...)
	sort.Strings(selected)

	v.Vocab = make(map[string]int, len(selected))
	v.IDF = make([]float64, len(selected))
	n := float64(len(texts))
	for i, tok := range selected {
		v.Vocab[tok] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[tok]))) + 1
	}
}

// transform returns a sparse feature vector as index->weight pairs.
func (v *tfidfVectorizer) transform(text string) map[int]float64 {
	vec := make(map[int]float64)
	for _, tok := range Tokenize(text) {
		if idx, ok := v.Vocab[tok]; ok {
			vec[idx] += v.IDF[idx]
		}
	}
	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range vec {
			vec[idx] /= norm
		}
	}
	return vec
}

// linearStrategy is the TF-IDF + multinomial logistic regression pipeline.
// There is no epoch loop; training runs full-batch gradient descent until the
// loss stops improving or the iteration bound is hit.
type linearStrategy struct {
	cfg     Config
	vec     *tfidfVectorizer
	labels  *LabelEncoder
	weights *matrix // [classes, features]
	bias    []float64
	trained bool
}

func newLinear(cfg Config) *linearStrategy {
	return &linearStrategy{cfg: cfg, vec: &tfidfVectorizer{maxFeatures: cfg.VocabSize}}
}

func (s *linearStrategy) Train(trainTexts, trainLabels, testTexts, testLabels []string) (*Metrics, error) {
	if len(trainTexts) == 0 || len(trainTexts) != len(trainLabels) {
		return nil, fmt.Errorf("train set: %d texts, %d labels", len(trainTexts), len(trainLabels))
	}

	s.labels = &LabelEncoder{}
	s.labels.Fit(trainLabels)
	trainY, err := s.labels.Transform(trainLabels)
	if err != nil {
		return nil, err
	}
	testY, err := s.labels.Transform(testLabels)
	if err != nil {
		return nil, err
	}

	s.vec.fit(trainTexts)
	docs := make([]map[int]float64, len(trainTexts))
	for i, text := range trainTexts {
		docs[i] = s.vec.transform(text)
	}

	classes := len(s.labels.Classes)
	features := len(s.vec.IDF)
	s.weights = newMatrix(classes, features)
	s.bias = make([]float64, classes)

	prevLoss := math.Inf(1)
	for iter := 0; iter < linearMaxIter; iter++ {
		loss := s.gradientStep(docs, trainY)
		if math.Abs(prevLoss-loss) < linearTol {
			logging.L().Info("linear model converged",
				zap.Int("iterations", iter+1), zap.Float64("loss", loss))
			break
		}
		prevLoss = loss
	}
	s.trained = true

	trainPred := s.predictDocs(docs)
	testPred := make([]int, len(testTexts))
	for i, text := range testTexts {
		testPred[i] = s.decide(s.vec.transform(text))
	}
	return evaluate(trainPred, trainY, testPred, testY, s.labels.Classes), nil
}

// gradientStep runs one full-batch update and returns the regularized loss.
func (s *linearStrategy) gradientStep(docs []map[int]float64, y []int) float64 {
	classes := s.weights.rows
	gradW := newMatrix(classes, s.weights.cols)
	gradB := make([]float64, classes)
	var loss float64

	for i, doc := range docs {
		logits := s.scores(doc)
		probs := softmax(logits)
		loss += -math.Log(math.Max(probs[y[i]], 1e-12))
		for c := 0; c < classes; c++ {
			d := probs[c]
			if c == y[i] {
				d--
			}
			gradB[c] += d
			row := gradW.row(c)
			for idx, w := range doc {
				row[idx] += d * w
			}
		}
	}

	n := float64(len(docs))
	for c := 0; c < classes; c++ {
		wRow := s.weights.row(c)
		gRow := gradW.row(c)
		for j := range wRow {
			g := gRow[j]/n + linearL2*wRow[j]
			wRow[j] -= linearLR * g
			loss += 0.5 * linearL2 * wRow[j] * wRow[j]
		}
		s.bias[c] -= linearLR * gradB[c] / n
	}
	return loss / n
}

func (s *linearStrategy) scores(doc map[int]float64) []float64 {
	logits := append([]float64{}, s.bias...)
	for c := 0; c < s.weights.rows; c++ {
		row := s.weights.row(c)
		for idx, w := range doc {
			logits[c] += row[idx] * w
		}
	}
	return logits
}

func (s *linearStrategy) decide(doc map[int]float64) int {
	return argmax(s.scores(doc))
}

func (s *linearStrategy) predictDocs(docs []map[int]float64) []int {
	out := make([]int, len(docs))
	for i, doc := range docs {
		out[i] = s.decide(doc)
	}
	return out
}

func (s *linearStrategy) Predict(texts []string) ([]int, error) {
	if !s.trained {
		return nil, ErrUntrained
	}
	out := make([]int, len(texts))
	for i, text := range texts {
		out[i] = s.decide(s.vec.transform(text))
	}
	return out, nil
}

func (s *linearStrategy) DecodeLabels(indices []int) ([]string, error) {
	if !s.trained {
		return nil, ErrUntrained
	}
	return s.labels.Decode(indices)
}

// linearModel is the persisted fitted pipeline.
type linearModel struct {
	Vectorizer *tfidfVectorizer `json:"vectorizer"`
	Weights    []float64        `json:"weights"`
	Bias       []float64        `json:"bias"`
	Classes    int              `json:"classes"`
	Features   int              `json:"features"`
}

func (s *linearStrategy) SaveModel() error {
	if !s.trained {
		return ErrUntrained
	}
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return err
	}

	model := linearModel{
		Vectorizer: s.vec,
		Weights:    s.weights.data,
		Bias:       s.bias,
		Classes:    s.weights.rows,
		Features:   s.weights.cols,
	}
	payload, err := json.Marshal(model)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.cfg.OutputDir, "model.json"), payload, 0o644); err != nil {
		return err
	}

	if err := s.vec.saveVocab(filepath.Join(s.cfg.OutputDir, vocabFile)); err != nil {
		return err
	}
	if err := s.labels.Save(filepath.Join(s.cfg.OutputDir, scalerFile)); err != nil {
		return err
	}
	return s.ExportONNX(filepath.Join(s.cfg.OutputDir, onnxFile))
}

func (v *tfidfVectorizer) saveVocab(path string) error {
	payload, err := json.Marshal(v.Vocab)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func (s *linearStrategy) LoadModel(prefix string) error {
	payload, err := os.ReadFile(artifactPath(s.cfg.OutputDir, prefix, "model.json"))
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	model := linearModel{}
	if err := json.Unmarshal(payload, &model); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if len(model.Weights) != model.Classes*model.Features {
		return fmt.Errorf("model artifact: %d weights, want %d", len(model.Weights), model.Classes*model.Features)
	}

	labels, err := LoadLabelEncoder(artifactPath(s.cfg.OutputDir, prefix, scalerFile))
	if err != nil {
		return err
	}

	model.Vectorizer.maxFeatures = s.cfg.VocabSize
	s.vec = model.Vectorizer
	s.weights = &matrix{rows: model.Classes, cols: model.Features, data: model.Weights}
	s.bias = model.Bias
	s.labels = labels
	s.trained = true
	return nil
}

// ExportONNX writes the linear decision head as an ONNX graph (opset 17):
// input is a float tensor of TF-IDF features with a dynamic batch dimension;
// the vectorizer vocabulary travels separately in vocab.json.
func (s *linearStrategy) ExportONNX(path string) error {
	if !s.trained {
		return ErrUntrained
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	model := &onnx.Model{
		ProducerName:    "textclass",
		ProducerVersion: "1.0",
		OpsetVersion:    17,
		GraphName:       string(KindLinear),
		Inputs: []onnx.ValueInfo{{
			Name: "input",
			Type: onnx.Float,
			Dims: []onnx.Dim{{Param: "batch_size"}, {Value: int64(s.weights.cols)}},
		}},
		Outputs: []onnx.ValueInfo{{
			Name: "output",
			Type: onnx.Float,
			Dims: []onnx.Dim{{Param: "batch_size"}, {Value: int64(s.weights.rows)}},
		}},
		Initializers: []onnx.Tensor{
			floatTensor("coef", []int64{int64(s.weights.rows), int64(s.weights.cols)}, s.weights.data),
			floatTensor("intercept", []int64{int64(s.weights.rows)}, s.bias),
		},
		Nodes: []onnx.Node{{
			OpType: "Gemm", Name: "decision",
			Inputs:  []string{"input", "coef", "intercept"},
			Outputs: []string{"output"},
			Attrs:   []onnx.Attr{onnx.IntAttr("transB", 1)},
		}},
	}

	if err := model.WriteFile(path); err != nil {
		return err
	}
	logging.L().Info("onnx model saved", zap.String("path", path))
	return nil
}

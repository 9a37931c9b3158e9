package classifier

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"textclass/logging"
	"textclass/onnx"
)

const rnnEpochs = 10

// recurrentStrategy trains the bidirectional recurrent classifier. Variant A
// pools the first time-step of the recurrent outputs, trains with batch size
// 16 and persists weights as JSON; variant B pools the final states, trains
// with batch size 32, persists a gob snapshot and exports probabilities
// instead of logits.
type recurrentStrategy struct {
	cfg     Config
	vocab   *Vocabulary
	labels  *LabelEncoder
	net     *rnnNet
	rng     *rand.Rand
	trained bool
}

func newRecurrent(cfg Config) *recurrentStrategy {
	return &recurrentStrategy{
		cfg:   cfg,
		vocab: NewVocabulary(cfg.VocabSize),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (s *recurrentStrategy) poolFirst() bool { return s.cfg.Kind == KindRecurrentA }

func (s *recurrentStrategy) batchSize() int {
	if s.poolFirst() {
		return 16
	}
	return 32
}

func (s *recurrentStrategy) learningRate() float64 {
	if s.poolFirst() {
		return 2e-4
	}
	return 1e-3
}

func (s *recurrentStrategy) modelFile() string {
	if s.poolFirst() {
		return "model.json"
	}
	return "model.gob"
}

func (s *recurrentStrategy) Train(trainTexts, trainLabels, testTexts, testLabels []string) (*Metrics, error) {
	if len(trainTexts) == 0 || len(trainTexts) != len(trainLabels) {
		return nil, fmt.Errorf("train set: %d texts, %d labels", len(trainTexts), len(trainLabels))
	}

	// The vocabulary may see both partitions' text but never test labels.
	s.vocab.Fit(append(append([]string{}, trainTexts...), testTexts...))
	trainSeq := s.vocab.Sequences(trainTexts, s.cfg.MaxLen)
	testSeq := s.vocab.Sequences(testTexts, s.cfg.MaxLen)

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

	s.net = newRNNNet(s.cfg.VocabSize, s.cfg.EmbeddingDim, s.cfg.HiddenDim,
		len(s.labels.Classes), s.cfg.MaxLen, s.poolFirst(), s.rng)

	opt := newAdam(s.learningRate(), s.net.params())
	batch := s.batchSize()
	order := make([]int, len(trainSeq))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= rnnEpochs; epoch++ {
		s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		var batches int
		for start := 0; start < len(order); start += batch {
			end := start + batch
			if end > len(order) {
				end = len(order)
			}
			grads := s.net.gradShadow()
			var batchLoss float64
			for _, idx := range order[start:end] {
				fc := s.net.forward(trainSeq[idx], s.rng)
				batchLoss += s.net.backward(trainSeq[idx], trainY[idx], fc, grads)
			}
			size := float64(end - start)
			opt.update(s.net.params(), grads.params(), 1/size)
			epochLoss += batchLoss / size
			batches++
		}

		meanLoss := epochLoss / float64(batches)
		logging.L().Info("epoch complete",
			zap.String("strategy", string(s.cfg.Kind)),
			zap.Int("epoch", epoch),
			zap.Int("epochs", rnnEpochs),
			zap.Float64("loss", meanLoss))
		if s.cfg.OnEpoch != nil {
			s.cfg.OnEpoch(epoch, meanLoss)
		}
	}
	s.trained = true

	trainPred := s.predictSequences(trainSeq)
	testPred := s.predictSequences(testSeq)
	return evaluate(trainPred, trainY, testPred, testY, s.labels.Classes), nil
}

func (s *recurrentStrategy) predictSequences(seqs [][]int) []int {
	out := make([]int, len(seqs))
	for i, seq := range seqs {
		out[i] = s.net.predict(seq)
	}
	return out
}

func (s *recurrentStrategy) Predict(texts []string) ([]int, error) {
	if !s.trained {
		return nil, ErrUntrained
	}
	return s.predictSequences(s.vocab.Sequences(texts, s.cfg.MaxLen)), nil
}

func (s *recurrentStrategy) DecodeLabels(indices []int) ([]string, error) {
	if !s.trained {
		return nil, ErrUntrained
	}
	return s.labels.Decode(indices)
}

// rnnSnapshot is the persisted form of the trained network.
type rnnSnapshot struct {
	VocabSize    int       `json:"vocab_size"`
	EmbeddingDim int       `json:"embedding_dim"`
	HiddenDim    int       `json:"hidden_dim"`
	Classes      int       `json:"classes"`
	MaxLen       int       `json:"max_len"`
	PoolFirst    bool      `json:"pool_first"`
	Emb          []float64 `json:"emb"`
	FwdWx        []float64 `json:"fwd_wx"`
	FwdWh        []float64 `json:"fwd_wh"`
	FwdB         []float64 `json:"fwd_b"`
	BwdWx        []float64 `json:"bwd_wx"`
	BwdWh        []float64 `json:"bwd_wh"`
	BwdB         []float64 `json:"bwd_b"`
	W1           []float64 `json:"w1"`
	B1           []float64 `json:"b1"`
	W2           []float64 `json:"w2"`
	B2           []float64 `json:"b2"`
}

func (s *recurrentStrategy) snapshot() *rnnSnapshot {
	n := s.net
	return &rnnSnapshot{
		VocabSize: n.vocab, EmbeddingDim: n.embDim, HiddenDim: n.hidden,
		Classes: n.classes, MaxLen: n.maxLen, PoolFirst: n.poolFirst,
		Emb:   n.emb.data,
		FwdWx: n.fwd.wx.data, FwdWh: n.fwd.wh.data, FwdB: n.fwd.b,
		BwdWx: n.bwd.wx.data, BwdWh: n.bwd.wh.data, BwdB: n.bwd.b,
		W1: n.w1.data, B1: n.b1, W2: n.w2.data, B2: n.b2,
	}
}

func (s *recurrentStrategy) restore(snap *rnnSnapshot) error {
	expect := func(name string, got []float64, want int) error {
		if len(got) != want {
			return fmt.Errorf("model artifact: %s has %d values, want %d", name, len(got), want)
		}
		return nil
	}
	h := snap.HiddenDim
	checks := []struct {
		name string
		data []float64
		want int
	}{
		{"emb", snap.Emb, snap.VocabSize * snap.EmbeddingDim},
		{"fwd_wx", snap.FwdWx, h * snap.EmbeddingDim},
		{"fwd_wh", snap.FwdWh, h * h},
		{"fwd_b", snap.FwdB, h},
		{"bwd_wx", snap.BwdWx, h * snap.EmbeddingDim},
		{"bwd_wh", snap.BwdWh, h * h},
		{"bwd_b", snap.BwdB, h},
		{"w1", snap.W1, headDim * 2 * h},
		{"b1", snap.B1, headDim},
		{"w2", snap.W2, snap.Classes * headDim},
		{"b2", snap.B2, snap.Classes},
	}
	for _, c := range checks {
		if err := expect(c.name, c.data, c.want); err != nil {
			return err
		}
	}

	n := &rnnNet{
		vocab: snap.VocabSize, embDim: snap.EmbeddingDim, hidden: h,
		classes: snap.Classes, maxLen: snap.MaxLen, poolFirst: snap.PoolFirst,
		emb: &matrix{rows: snap.VocabSize, cols: snap.EmbeddingDim, data: snap.Emb},
		fwd: rnnCell{
			wx: &matrix{rows: h, cols: snap.EmbeddingDim, data: snap.FwdWx},
			wh: &matrix{rows: h, cols: h, data: snap.FwdWh},
			b:  snap.FwdB,
		},
		bwd: rnnCell{
			wx: &matrix{rows: h, cols: snap.EmbeddingDim, data: snap.BwdWx},
			wh: &matrix{rows: h, cols: h, data: snap.BwdWh},
			b:  snap.BwdB,
		},
		w1: &matrix{rows: headDim, cols: 2 * h, data: snap.W1},
		b1: snap.B1,
		w2: &matrix{rows: snap.Classes, cols: headDim, data: snap.W2},
		b2: snap.B2,
	}
	s.net = n
	s.cfg.MaxLen = snap.MaxLen
	s.cfg.VocabSize = snap.VocabSize
	return nil
}

func (s *recurrentStrategy) SaveModel() error {
	if !s.trained {
		return ErrUntrained
	}
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return err
	}

	modelPath := filepath.Join(s.cfg.OutputDir, s.modelFile())
	if s.poolFirst() {
		payload, err := json.Marshal(s.snapshot())
		if err != nil {
			return err
		}
		if err := os.WriteFile(modelPath, payload, 0o644); err != nil {
			return err
		}
	} else {
		f, err := os.Create(modelPath)
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(f).Encode(s.snapshot()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if err := s.vocab.Save(filepath.Join(s.cfg.OutputDir, vocabFile)); err != nil {
		return err
	}
	if err := s.labels.Save(filepath.Join(s.cfg.OutputDir, scalerFile)); err != nil {
		return err
	}
	return s.ExportONNX(filepath.Join(s.cfg.OutputDir, onnxFile))
}

func (s *recurrentStrategy) LoadModel(prefix string) error {
	snap := &rnnSnapshot{}
	modelPath := artifactPath(s.cfg.OutputDir, prefix, s.modelFile())
	if s.poolFirst() {
		payload, err := os.ReadFile(modelPath)
		if err != nil {
			return fmt.Errorf("read model: %w", err)
		}
		if err := json.Unmarshal(payload, snap); err != nil {
			return fmt.Errorf("decode model: %w", err)
		}
	} else {
		f, err := os.Open(modelPath)
		if err != nil {
			return fmt.Errorf("read model: %w", err)
		}
		defer f.Close()
		if err := gob.NewDecoder(f).Decode(snap); err != nil {
			return fmt.Errorf("decode model: %w", err)
		}
	}
	if err := s.restore(snap); err != nil {
		return err
	}

	vocab, err := LoadVocabulary(artifactPath(s.cfg.OutputDir, prefix, vocabFile), s.cfg.VocabSize)
	if err != nil {
		return err
	}
	labels, err := LoadLabelEncoder(artifactPath(s.cfg.OutputDir, prefix, scalerFile))
	if err != nil {
		return err
	}
	s.vocab = vocab
	s.labels = labels
	s.trained = true
	return nil
}

// ExportONNX writes the trained network as an ONNX graph (opset 17): Gather
// over the embedding, a bidirectional RNN, the variant's pooling, then the
// dense head. The batch dimension is dynamic.
func (s *recurrentStrategy) ExportONNX(path string) error {
	if !s.trained {
		return ErrUntrained
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	n := s.net
	model := &onnx.Model{
		ProducerName:    "textclass",
		ProducerVersion: "1.0",
		OpsetVersion:    17,
		GraphName:       string(s.cfg.Kind),
		Inputs: []onnx.ValueInfo{{
			Name: "input_ids",
			Type: onnx.Int64,
			Dims: []onnx.Dim{{Param: "batch_size"}, {Value: int64(n.maxLen)}},
		}},
		Outputs: []onnx.ValueInfo{{
			Name: "output",
			Type: onnx.Float,
			Dims: []onnx.Dim{{Param: "batch_size"}, {Value: int64(n.classes)}},
		}},
	}

	model.Initializers = append(model.Initializers,
		floatTensor("embedding", []int64{int64(n.vocab), int64(n.embDim)}, n.emb.data),
		// RNN weights: [num_directions, hidden, ...]; direction 0 forward.
		floatTensor("rnn_W", []int64{2, int64(n.hidden), int64(n.embDim)},
			append(append([]float64{}, n.fwd.wx.data...), n.bwd.wx.data...)),
		floatTensor("rnn_R", []int64{2, int64(n.hidden), int64(n.hidden)},
			append(append([]float64{}, n.fwd.wh.data...), n.bwd.wh.data...)),
		// B holds Wb and Rb halves per direction; the recurrent bias lives in Wb.
		floatTensor("rnn_B", []int64{2, int64(2 * n.hidden)},
			biasWithZeros(n.fwd.b, n.bwd.b)),
		floatTensor("fc1_W", []int64{headDim, int64(2 * n.hidden)}, n.w1.data),
		floatTensor("fc1_B", []int64{headDim}, n.b1),
		floatTensor("fc2_W", []int64{int64(n.classes), headDim}, n.w2.data),
		floatTensor("fc2_B", []int64{int64(n.classes)}, n.b2),
		intTensor("head_shape", []int64{2}, []int64{-1, int64(2 * n.hidden)}),
	)

	model.Nodes = append(model.Nodes,
		onnx.Node{OpType: "Gather", Name: "embed",
			Inputs: []string{"embedding", "input_ids"}, Outputs: []string{"embedded"},
			Attrs: []onnx.Attr{onnx.IntAttr("axis", 0)}},
		onnx.Node{OpType: "Transpose", Name: "to_seq_major",
			Inputs: []string{"embedded"}, Outputs: []string{"embedded_t"},
			Attrs: []onnx.Attr{onnx.IntsAttr("perm", 1, 0, 2)}},
		onnx.Node{OpType: "RNN", Name: "birnn",
			Inputs:  []string{"embedded_t", "rnn_W", "rnn_R", "rnn_B"},
			Outputs: []string{"rnn_out", "rnn_final"},
			Attrs: []onnx.Attr{
				onnx.IntAttr("hidden_size", int64(n.hidden)),
				onnx.StringAttr("direction", "bidirectional"),
				onnx.StringsAttr("activations", "Tanh", "Tanh"),
			}},
	)

	// Pooling: variant A slices the first time-step of the full output
	// sequence; variant B uses the final state of each direction.
	pooledSource := "rnn_final"
	if n.poolFirst {
		model.Initializers = append(model.Initializers,
			intTensor("slice_starts", []int64{1}, []int64{0}),
			intTensor("slice_ends", []int64{1}, []int64{1}),
			intTensor("slice_axes", []int64{1}, []int64{0}),
			intTensor("squeeze_axes", []int64{1}, []int64{0}),
		)
		model.Nodes = append(model.Nodes,
			onnx.Node{OpType: "Slice", Name: "first_step",
				Inputs:  []string{"rnn_out", "slice_starts", "slice_ends", "slice_axes"},
				Outputs: []string{"first_step_out"}},
			onnx.Node{OpType: "Squeeze", Name: "drop_seq_axis",
				Inputs:  []string{"first_step_out", "squeeze_axes"},
				Outputs: []string{"pool_states"}},
		)
		pooledSource = "pool_states"
	}

	model.Nodes = append(model.Nodes,
		onnx.Node{OpType: "Transpose", Name: "to_batch_major",
			Inputs: []string{pooledSource}, Outputs: []string{"pool_t"},
			Attrs: []onnx.Attr{onnx.IntsAttr("perm", 1, 0, 2)}},
		onnx.Node{OpType: "Reshape", Name: "merge_directions",
			Inputs: []string{"pool_t", "head_shape"}, Outputs: []string{"pooled"}},
		onnx.Node{OpType: "Gemm", Name: "fc1",
			Inputs: []string{"pooled", "fc1_W", "fc1_B"}, Outputs: []string{"fc1_out"},
			Attrs: []onnx.Attr{onnx.IntAttr("transB", 1)}},
		onnx.Node{OpType: "Relu", Name: "fc1_act",
			Inputs: []string{"fc1_out"}, Outputs: []string{"fc1_relu"}},
	)

	if n.poolFirst {
		model.Nodes = append(model.Nodes,
			onnx.Node{OpType: "Gemm", Name: "fc2",
				Inputs: []string{"fc1_relu", "fc2_W", "fc2_B"}, Outputs: []string{"output"},
				Attrs: []onnx.Attr{onnx.IntAttr("transB", 1)}},
		)
	} else {
		model.Nodes = append(model.Nodes,
			onnx.Node{OpType: "Gemm", Name: "fc2",
				Inputs: []string{"fc1_relu", "fc2_W", "fc2_B"}, Outputs: []string{"logits"},
				Attrs: []onnx.Attr{onnx.IntAttr("transB", 1)}},
			onnx.Node{OpType: "Softmax", Name: "probs",
				Inputs: []string{"logits"}, Outputs: []string{"output"},
				Attrs: []onnx.Attr{onnx.IntAttr("axis", 1)}},
		)
	}

	if err := model.WriteFile(path); err != nil {
		return err
	}
	logging.L().Info("onnx model saved", zap.String("path", path))
	return nil
}

func floatTensor(name string, dims []int64, data []float64) onnx.Tensor {
	floats := make([]float32, len(data))
	for i, v := range data {
		floats[i] = float32(v)
	}
	return onnx.Tensor{Name: name, Type: onnx.Float, Dims: dims, Floats: floats}
}

func intTensor(name string, dims []int64, data []int64) onnx.Tensor {
	return onnx.Tensor{Name: name, Type: onnx.Int64, Dims: dims, Ints: data}
}

// biasWithZeros lays out the ONNX RNN bias tensor [2, 2*hidden]: per
// direction the input bias followed by a zero recurrence bias.
func biasWithZeros(fwd, bwd []float64) []float64 {
	h := len(fwd)
	out := make([]float64, 4*h)
	copy(out, fwd)
	copy(out[2*h:], bwd)
	return out
}

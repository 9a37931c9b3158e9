package classifier

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// headDim is the width of the dense layer between the recurrent outputs and
// the class logits.
const headDim = 64

const dropoutRate = 0.5

// matrix is a row-major dense matrix backed by a flat slice so the optimizer
// can treat every parameter uniformly.
type matrix struct {
	rows, cols int
	data       []float64
}

func newMatrix(rows, cols int) *matrix {
	return &matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func (m *matrix) view() *mat.Dense { return mat.NewDense(m.rows, m.cols, m.data) }

func (m *matrix) row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

// mulVec returns m*x.
func (m *matrix) mulVec(x []float64) []float64 {
	out := make([]float64, m.rows)
	mat.NewVecDense(m.rows, out).MulVec(m.view(), mat.NewVecDense(m.cols, x))
	return out
}

// mulVecT returns mᵀ*x.
func (m *matrix) mulVecT(x []float64) []float64 {
	out := make([]float64, m.cols)
	mat.NewVecDense(m.cols, out).MulVec(m.view().T(), mat.NewVecDense(m.rows, x))
	return out
}

// addOuter accumulates the outer product dy⊗x into m.
func (m *matrix) addOuter(dy, x []float64) {
	for i, v := range dy {
		if v == 0 {
			continue
		}
		floats.AddScaled(m.row(i), v, x)
	}
}

func (m *matrix) randomize(rng *rand.Rand) {
	scale := 1 / math.Sqrt(float64(m.cols))
	for i := range m.data {
		m.data[i] = (2*rng.Float64() - 1) * scale
	}
}

// rnnCell is a tanh recurrent cell: h_t = tanh(Wx·x_t + Wh·h_{t-1} + b).
type rnnCell struct {
	wx *matrix // [hidden, input]
	wh *matrix // [hidden, hidden]
	b  []float64
}

func newRNNCell(input, hidden int, rng *rand.Rand) rnnCell {
	c := rnnCell{wx: newMatrix(hidden, input), wh: newMatrix(hidden, hidden), b: make([]float64, hidden)}
	c.wx.randomize(rng)
	c.wh.randomize(rng)
	return c
}

// scan runs the cell over xs. states[0] is the zero initial state and
// states[t+1] is the hidden state after consuming xs[t].
func (c *rnnCell) scan(xs [][]float64) [][]float64 {
	hidden := len(c.b)
	states := make([][]float64, len(xs)+1)
	states[0] = make([]float64, hidden)
	for t, x := range xs {
		h := c.wx.mulVec(x)
		floats.Add(h, c.wh.mulVec(states[t]))
		floats.Add(h, c.b)
		for i := range h {
			h[i] = math.Tanh(h[i])
		}
		states[t+1] = h
	}
	return states
}

// bptt propagates the gradient dh sitting at states[from] back to states[1],
// accumulating parameter gradients into g and per-step input gradients into
// dxs (indexed by scan step).
func (c *rnnCell) bptt(xs, states [][]float64, from int, dh []float64, g *rnnCell, dxs [][]float64) {
	grad := append([]float64(nil), dh...)
	for t := from; t >= 1; t-- {
		h := states[t]
		dz := make([]float64, len(grad))
		for i := range grad {
			dz[i] = grad[i] * (1 - h[i]*h[i])
		}
		g.wx.addOuter(dz, xs[t-1])
		g.wh.addOuter(dz, states[t-1])
		floats.Add(g.b, dz)
		floats.Add(dxs[t-1], c.wx.mulVecT(dz))
		grad = c.wh.mulVecT(dz)
	}
}

// rnnNet is the full classifier: embedding, bidirectional recurrent layer,
// dropout, dense head. poolFirst selects which forward time-step feeds the
// head: the first (variant A) or the last (variant B). The backward direction
// always contributes its final state.
type rnnNet struct {
	vocab, embDim, hidden, classes, maxLen int
	poolFirst                              bool

	emb      *matrix // [vocab, embDim]
	fwd, bwd rnnCell
	w1       *matrix // [headDim, 2*hidden]
	b1       []float64
	w2       *matrix // [classes, headDim]
	b2       []float64
}

func newRNNNet(vocab, embDim, hidden, classes, maxLen int, poolFirst bool, rng *rand.Rand) *rnnNet {
	n := &rnnNet{
		vocab: vocab, embDim: embDim, hidden: hidden, classes: classes, maxLen: maxLen,
		poolFirst: poolFirst,
		emb:       newMatrix(vocab, embDim),
		fwd:       newRNNCell(embDim, hidden, rng),
		bwd:       newRNNCell(embDim, hidden, rng),
		w1:        newMatrix(headDim, 2*hidden),
		b1:        make([]float64, headDim),
		w2:        newMatrix(classes, headDim),
		b2:        make([]float64, classes),
	}
	n.emb.randomize(rng)
	// Padding index embeds to zero.
	clear(n.emb.row(padIndex))
	n.w1.randomize(rng)
	n.w2.randomize(rng)
	return n
}

// gradShadow returns an rnnNet with zeroed parameters of identical shapes,
// used as the gradient accumulator for one mini-batch.
func (n *rnnNet) gradShadow() *rnnNet {
	return &rnnNet{
		vocab: n.vocab, embDim: n.embDim, hidden: n.hidden, classes: n.classes, maxLen: n.maxLen,
		poolFirst: n.poolFirst,
		emb:       newMatrix(n.vocab, n.embDim),
		fwd:       rnnCell{wx: newMatrix(n.hidden, n.embDim), wh: newMatrix(n.hidden, n.hidden), b: make([]float64, n.hidden)},
		bwd:       rnnCell{wx: newMatrix(n.hidden, n.embDim), wh: newMatrix(n.hidden, n.hidden), b: make([]float64, n.hidden)},
		w1:        newMatrix(headDim, 2*n.hidden),
		b1:        make([]float64, headDim),
		w2:        newMatrix(n.classes, headDim),
		b2:        make([]float64, n.classes),
	}
}

// params returns the flat parameter slices in a stable order shared with
// gradShadow results.
func (n *rnnNet) params() [][]float64 {
	return [][]float64{
		n.emb.data,
		n.fwd.wx.data, n.fwd.wh.data, n.fwd.b,
		n.bwd.wx.data, n.bwd.wh.data, n.bwd.b,
		n.w1.data, n.b1,
		n.w2.data, n.b2,
	}
}

type forwardCache struct {
	xs     [][]float64 // embeddings in sequence order
	rxs    [][]float64 // embeddings in reverse order
	fs, bs [][]float64 // forward/backward states
	raw    []float64   // pooled output before dropout
	mask   []float64   // dropout mask, nil at inference
	pooled []float64   // head input (post dropout)
	z1, a1 []float64
	logits []float64
}

func (n *rnnNet) poolStep() int {
	if n.poolFirst {
		return 1
	}
	return n.maxLen
}

// forward runs one padded sequence through the network. When rng is non-nil
// inverted dropout is applied to the pooled output.
func (n *rnnNet) forward(seq []int, rng *rand.Rand) *forwardCache {
	fc := &forwardCache{
		xs:  make([][]float64, len(seq)),
		rxs: make([][]float64, len(seq)),
	}
	for t, id := range seq {
		fc.xs[t] = n.emb.row(id)
		fc.rxs[len(seq)-1-t] = n.emb.row(id)
	}
	fc.fs = n.fwd.scan(fc.xs)
	fc.bs = n.bwd.scan(fc.rxs)

	fc.raw = make([]float64, 2*n.hidden)
	copy(fc.raw, fc.fs[n.poolStep()])
	copy(fc.raw[n.hidden:], fc.bs[len(seq)])

	fc.pooled = fc.raw
	if rng != nil {
		fc.mask = make([]float64, len(fc.raw))
		fc.pooled = make([]float64, len(fc.raw))
		keep := 1 - dropoutRate
		for i := range fc.mask {
			if rng.Float64() < keep {
				fc.mask[i] = 1 / keep
			}
			fc.pooled[i] = fc.raw[i] * fc.mask[i]
		}
	}

	fc.z1 = n.w1.mulVec(fc.pooled)
	floats.Add(fc.z1, n.b1)
	fc.a1 = make([]float64, len(fc.z1))
	for i, z := range fc.z1 {
		if z > 0 {
			fc.a1[i] = z
		}
	}
	fc.logits = n.w2.mulVec(fc.a1)
	floats.Add(fc.logits, n.b2)
	return fc
}

// backward accumulates gradients for one sample into g and returns the
// cross-entropy loss.
func (n *rnnNet) backward(seq []int, class int, fc *forwardCache, g *rnnNet) float64 {
	probs := softmax(fc.logits)
	loss := -math.Log(math.Max(probs[class], 1e-12))

	dlogits := append([]float64(nil), probs...)
	dlogits[class]--

	g.w2.addOuter(dlogits, fc.a1)
	floats.Add(g.b2, dlogits)

	da1 := n.w2.mulVecT(dlogits)
	dz1 := make([]float64, len(da1))
	for i := range da1 {
		if fc.z1[i] > 0 {
			dz1[i] = da1[i]
		}
	}
	g.w1.addOuter(dz1, fc.pooled)
	floats.Add(g.b1, dz1)

	draw := n.w1.mulVecT(dz1)
	if fc.mask != nil {
		for i := range draw {
			draw[i] *= fc.mask[i]
		}
	}

	dxsF := zeroVectors(len(seq), n.embDim)
	dxsB := zeroVectors(len(seq), n.embDim)
	n.fwd.bptt(fc.xs, fc.fs, n.poolStep(), draw[:n.hidden], &g.fwd, dxsF)
	n.bwd.bptt(fc.rxs, fc.bs, len(seq), draw[n.hidden:], &g.bwd, dxsB)

	for t, id := range seq {
		floats.Add(g.emb.row(id), dxsF[t])
		floats.Add(g.emb.row(id), dxsB[len(seq)-1-t])
	}
	// The padding row stays zero.
	clear(g.emb.row(padIndex))
	return loss
}

// predict returns the arg-max class for one padded sequence.
func (n *rnnNet) predict(seq []int) int {
	fc := n.forward(seq, nil)
	return argmax(fc.logits)
}

func zeroVectors(count, dim int) [][]float64 {
	out := make([][]float64, count)
	for i := range out {
		out[i] = make([]float64, dim)
	}
	return out
}

func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	max := floats.Max(logits)
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// adam is the Adam optimizer over the flat parameter slices of a network.
type adam struct {
	lr, beta1, beta2, eps float64
	step                  int
	m, v                  [][]float64
}

func newAdam(lr float64, params [][]float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	a.m = make([][]float64, len(params))
	a.v = make([][]float64, len(params))
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

// update applies one Adam step with gradients scaled by scale (1/batchSize).
func (a *adam) update(params, grads [][]float64, scale float64) {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range params {
		g := grads[i]
		m, v := a.m[i], a.v[i]
		for j := range p {
			gj := g[j] * scale
			m[j] = a.beta1*m[j] + (1-a.beta1)*gj
			v[j] = a.beta2*v[j] + (1-a.beta2)*gj*gj
			p[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
		}
	}
}

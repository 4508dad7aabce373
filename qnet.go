package debrisguard

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"

	"github.com/gonum/matrix/mat64"
)

const tdErrorClip = 10.0

// QNetwork is a single-hidden-layer action-value approximator backed by
// mat64. Two instances of identical architecture form the online/target pair
// of the double Q-learning scheme.
type QNetwork struct {
	inputs, hidden, outputs int
	w1                      *mat64.Dense // hidden × inputs
	b1                      []float64
	w2                      *mat64.Dense // outputs × hidden
	b2                      []float64
}

// NewQNetwork returns a network with uniformly initialized weights scaled by
// the fan-in of each layer.
func NewQNetwork(inputs, hidden, outputs int, rng *rand.Rand) *QNetwork {
	n := &QNetwork{
		inputs:  inputs,
		hidden:  hidden,
		outputs: outputs,
		w1:      mat64.NewDense(hidden, inputs, nil),
		b1:      make([]float64, hidden),
		w2:      mat64.NewDense(outputs, hidden, nil),
		b2:      make([]float64, outputs),
	}
	scale1 := 1 / math.Sqrt(float64(inputs))
	for i := 0; i < hidden; i++ {
		for j := 0; j < inputs; j++ {
			n.w1.Set(i, j, (2*rng.Float64()-1)*scale1)
		}
	}
	scale2 := 1 / math.Sqrt(float64(hidden))
	for i := 0; i < outputs; i++ {
		for j := 0; j < hidden; j++ {
			n.w2.Set(i, j, (2*rng.Float64()-1)*scale2)
		}
	}
	return n
}

// forward returns the hidden pre-activations, hidden activations and output
// action values for one state.
func (n *QNetwork) forward(state []float64) (z1, h, q []float64) {
	z1 = make([]float64, n.hidden)
	h = make([]float64, n.hidden)
	for i := 0; i < n.hidden; i++ {
		sum := n.b1[i]
		for j := 0; j < n.inputs; j++ {
			sum += n.w1.At(i, j) * state[j]
		}
		z1[i] = sum
		if sum > 0 {
			h[i] = sum
		}
	}
	q = make([]float64, n.outputs)
	for i := 0; i < n.outputs; i++ {
		sum := n.b2[i]
		for j := 0; j < n.hidden; j++ {
			sum += n.w2.At(i, j) * h[j]
		}
		q[i] = sum
	}
	return
}

// Predict returns the action values for a state.
func (n *QNetwork) Predict(state []float64) ([]float64, error) {
	if len(state) != n.inputs {
		return nil, fmt.Errorf("state length %d does not match network input %d", len(state), n.inputs)
	}
	_, _, q := n.forward(state)
	if anyNonFinite(q) {
		return nil, fmt.Errorf("network produced a non-finite action value")
	}
	return q, nil
}

// ArgMax returns the index of the highest action value, lowest index on ties.
func ArgMax(q []float64) int {
	best := 0
	for i, v := range q {
		if v > q[best] {
			best = i
		}
	}
	return best
}

// UpdateTD performs one SGD step on the squared TD error of the chosen
// action. The error is clipped for stability.
func (n *QNetwork) UpdateTD(state []float64, action int, target, lr float64) error {
	if len(state) != n.inputs {
		return fmt.Errorf("state length %d does not match network input %d", len(state), n.inputs)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return fmt.Errorf("non-finite TD target")
	}
	z1, h, q := n.forward(state)
	δ := q[action] - target
	if δ > tdErrorClip {
		δ = tdErrorClip
	} else if δ < -tdErrorClip {
		δ = -tdErrorClip
	}

	// Output layer gradient, restricted to the chosen action.
	dh := make([]float64, n.hidden)
	for j := 0; j < n.hidden; j++ {
		dh[j] = δ * n.w2.At(action, j)
		n.w2.Set(action, j, n.w2.At(action, j)-lr*δ*h[j])
	}
	n.b2[action] -= lr * δ

	// Hidden layer gradient through the ReLU.
	for j := 0; j < n.hidden; j++ {
		if z1[j] <= 0 {
			continue
		}
		for i := 0; i < n.inputs; i++ {
			n.w1.Set(j, i, n.w1.At(j, i)-lr*dh[j]*state[i])
		}
		n.b1[j] -= lr * dh[j]
	}
	return nil
}

// Clone returns a deep copy of the network.
func (n *QNetwork) Clone() *QNetwork {
	c := &QNetwork{
		inputs:  n.inputs,
		hidden:  n.hidden,
		outputs: n.outputs,
		w1:      mat64.DenseCopyOf(n.w1),
		b1:      append([]float64(nil), n.b1...),
		w2:      mat64.DenseCopyOf(n.w2),
		b2:      append([]float64(nil), n.b2...),
	}
	return c
}

// SyncFrom hard-copies the other network's parameters into this one.
func (n *QNetwork) SyncFrom(other *QNetwork) {
	n.w1.Copy(other.w1)
	copy(n.b1, other.b1)
	n.w2.Copy(other.w2)
	copy(n.b2, other.b2)
}

// SoftSyncFrom moves this network's parameters towards the other's by the
// exponential moving average factor τ (τ=1 is a hard copy).
func (n *QNetwork) SoftSyncFrom(other *QNetwork, τ float64) {
	blend := func(dst, src *mat64.Dense) {
		r, c := dst.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				dst.Set(i, j, (1-τ)*dst.At(i, j)+τ*src.At(i, j))
			}
		}
	}
	blend(n.w1, other.w1)
	blend(n.w2, other.w2)
	for i := range n.b1 {
		n.b1[i] = (1-τ)*n.b1[i] + τ*other.b1[i]
	}
	for i := range n.b2 {
		n.b2[i] = (1-τ)*n.b2[i] + τ*other.b2[i]
	}
}

// netState is the gob wire form of a QNetwork.
type netState struct {
	Inputs, Hidden, Outputs int
	W1, B1, W2, B2          []float64
}

// GobEncode implements gob.GobEncoder.
func (n *QNetwork) GobEncode() ([]byte, error) {
	s := netState{
		Inputs:  n.inputs,
		Hidden:  n.hidden,
		Outputs: n.outputs,
		W1:      append([]float64(nil), n.w1.RawMatrix().Data...),
		B1:      append([]float64(nil), n.b1...),
		W2:      append([]float64(nil), n.w2.RawMatrix().Data...),
		B2:      append([]float64(nil), n.b2...),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (n *QNetwork) GobDecode(data []byte) error {
	var s netState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.W1) != s.Hidden*s.Inputs || len(s.W2) != s.Outputs*s.Hidden {
		return fmt.Errorf("corrupt network checkpoint: weight shape mismatch")
	}
	n.inputs = s.Inputs
	n.hidden = s.Hidden
	n.outputs = s.Outputs
	n.w1 = mat64.NewDense(s.Hidden, s.Inputs, s.W1)
	n.b1 = s.B1
	n.w2 = mat64.NewDense(s.Outputs, s.Hidden, s.W2)
	n.b2 = s.B2
	return nil
}

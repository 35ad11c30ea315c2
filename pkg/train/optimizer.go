package train

import (
	"math"
	"sort"
	"strings"

	"github.com/absa_transformer/pkg/tensor"
)

// ParameterGroup is a set of named parameters sharing one weight-decay
// setting. The learning rate is shared by all groups and updated per step.
type ParameterGroup struct {
	Params      map[string]*tensor.Tensor
	WeightDecay float64
}

// weightDecay is the default decay applied to weight matrices.
const weightDecay = 0.01

// BuildParameterGroups splits model parameters the way the original BERT
// recipe does: pooler parameters are excluded from optimization entirely,
// biases and layer-norm parameters get no weight decay, everything else
// decays at 0.01.
func BuildParameterGroups(params map[string]*tensor.Tensor) []*ParameterGroup {
	decay := &ParameterGroup{Params: make(map[string]*tensor.Tensor), WeightDecay: weightDecay}
	noDecay := &ParameterGroup{Params: make(map[string]*tensor.Tensor), WeightDecay: 0.0}

	for name, p := range params {
		if strings.Contains(name, "pooler") {
			continue
		}
		if strings.Contains(name, "bias") || strings.Contains(name, "norm") {
			noDecay.Params[name] = p
		} else {
			decay.Params[name] = p
		}
	}
	return []*ParameterGroup{decay, noDecay}
}

// Adam implements the Adam optimizer over parameter groups with decoupled
// weight decay added to the raw gradient, matching the fine-tuning recipe
// the schedule was designed for.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	groups []*ParameterGroup
	m      map[string]*tensor.Matrix
	v      map[string]*tensor.Matrix
	t      int
}

// NewAdam creates an Adam optimizer over the given parameter groups.
func NewAdam(lr float64, groups []*ParameterGroup) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		groups:       groups,
		m:            make(map[string]*tensor.Matrix),
		v:            make(map[string]*tensor.Matrix),
	}
}

// SetLearningRate updates the rate used by the next Step for every
// parameter group.
func (o *Adam) SetLearningRate(lr float64) {
	o.LearningRate = lr
}

// ZeroGrad clears the gradients of every optimized parameter.
func (o *Adam) ZeroGrad() {
	for _, g := range o.groups {
		for _, p := range g.Params {
			p.ZeroGrad()
		}
	}
}

// Step applies one Adam update to every optimized parameter.
func (o *Adam) Step() {
	o.t++
	bc1 := 1.0 - math.Pow(o.Beta1, float64(o.t))
	bc2 := 1.0 - math.Pow(o.Beta2, float64(o.t))

	for _, g := range o.groups {
		// Deterministic iteration keeps runs reproducible.
		names := make([]string, 0, len(g.Params))
		for name := range g.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p := g.Params[name]
			if p.Grad == nil || !p.Requires {
				continue
			}
			if _, ok := o.m[name]; !ok {
				o.m[name] = tensor.MustNewMatrix(p.Data.Rows, p.Data.Cols)
				o.v[name] = tensor.MustNewMatrix(p.Data.Rows, p.Data.Cols)
			}
			m, v := o.m[name], o.v[name]

			for i := 0; i < p.Data.Rows; i++ {
				for j := 0; j < p.Data.Cols; j++ {
					grad := p.Grad.Data[i][j]
					if g.WeightDecay > 0 {
						grad += g.WeightDecay * p.Data.Data[i][j]
					}
					m.Data[i][j] = o.Beta1*m.Data[i][j] + (1.0-o.Beta1)*grad
					v.Data[i][j] = o.Beta2*v.Data[i][j] + (1.0-o.Beta2)*grad*grad
					mHat := m.Data[i][j] / bc1
					vHat := v.Data[i][j] / bc2
					p.Data.Data[i][j] -= o.LearningRate * mHat / (math.Sqrt(vHat) + o.Epsilon)
				}
			}
		}
	}
}

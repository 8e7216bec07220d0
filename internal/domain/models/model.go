package models

// Activation names accepted by the inference engine. An empty activation is
// treated as relu.
const (
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
	ActivationTanh    = "tanh"
	ActivationSoftmax = "softmax"
	ActivationLinear  = "linear"
)

// DefaultInputWindow is used when a model declares no positive input window.
const DefaultInputWindow = 5

// Model is an uploaded feed-forward network. Its JSON form is the model file
// format accepted by the join endpoint.
type Model struct {
	Name        string  `json:"name,omitempty"`
	Color       string  `json:"color,omitempty"`
	Description string  `json:"description,omitempty"`
	InputWindow int     `json:"inputWindow"`
	Layers      []Layer `json:"layers"`
}

// Layer is a dense layer: Weights is [inputDim][outputDim], Bias is [outputDim].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation,omitempty"`
}

// Window returns the effective input window.
func (m *Model) Window() int {
	if m == nil || m.InputWindow <= 0 {
		return DefaultInputWindow
	}
	return m.InputWindow
}

// InputDim returns the declared input width of the first layer, or fallback
// when the model has no layers.
func (m *Model) InputDim(fallback int) int {
	if m == nil || len(m.Layers) == 0 {
		return fallback
	}
	return len(m.Layers[0].Weights)
}

// Clone returns a deep copy so callers cannot mutate an accepted model.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := *m
	out.Layers = make([]Layer, len(m.Layers))
	for i, l := range m.Layers {
		nl := Layer{Activation: l.Activation}
		if l.Bias != nil {
			nl.Bias = append([]float64(nil), l.Bias...)
		}
		if l.Weights != nil {
			nl.Weights = make([][]float64, len(l.Weights))
			for r, row := range l.Weights {
				if row != nil {
					nl.Weights[r] = append([]float64(nil), row...)
				}
			}
		}
		out.Layers[i] = nl
	}
	return &out
}

// SignalLabel is the decision taken from the network output.
type SignalLabel string

const (
	SignalBuy  SignalLabel = "buy"
	SignalSell SignalLabel = "sell"
	SignalHold SignalLabel = "hold"
)

// SignalLabels maps output index to label.
var SignalLabels = [3]SignalLabel{SignalBuy, SignalSell, SignalHold}

// Signal is the arg-max decision over the three output scores.
type Signal struct {
	Label         SignalLabel `json:"label"`
	Confidence    float64     `json:"confidence"`
	Probabilities []float64   `json:"probabilities"`
}

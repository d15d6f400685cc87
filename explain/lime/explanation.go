package lime

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
)

// FeatureWeight is one term of a local explanation.
type FeatureWeight struct {
	Feature string  // Human-readable description, e.g. "petal width (cm) <= 0.30"
	Index   int     // Column of the explained feature
	Weight  float64 // Coefficient of the local surrogate
}

// Explanation is the result of ExplainInstance. Maps are keyed by label:
// the class index in classification mode, 0 in regression mode.
type Explanation struct {
	Mode       string
	ClassNames []string

	// FeatureNames and FeatureValues describe the instance, values
	// rendered with two decimals. Descriptions are the per-feature labels
	// used in AsList: the instance's bin when discretizing, the plain name
	// otherwise.
	FeatureNames  []string
	FeatureValues []string
	Descriptions  []string

	// Classification output of the black box at the instance.
	PredictProba []float64

	// Regression output of the black box at the instance and its range
	// over the neighbourhood.
	PredictedValue float64
	MinValue       float64
	MaxValue       float64

	Intercept map[int]float64
	LocalExp  map[int][]FeatureWeight
	Score     map[int]float64
	LocalPred map[int]float64

	topLabels []int
}

func newExplanation(mode string, classNames []string) *Explanation {
	return &Explanation{
		Mode:       mode,
		ClassNames: classNames,
		Intercept:  make(map[int]float64),
		LocalExp:   make(map[int][]FeatureWeight),
		Score:      make(map[int]float64),
		LocalPred:  make(map[int]float64),
	}
}

// AsList returns the explanation of label sorted by decreasing |weight|.
func (e *Explanation) AsList(label int) ([]FeatureWeight, error) {
	exp, ok := e.LocalExp[label]
	if !ok {
		return nil, errors.NewValueError("Explanation.AsList", fmt.Sprintf("label %d was not explained", label))
	}
	return append([]FeatureWeight(nil), exp...), nil
}

// AsMap returns every explained label.
func (e *Explanation) AsMap() map[int][]FeatureWeight {
	out := make(map[int][]FeatureWeight, len(e.LocalExp))
	for label, exp := range e.LocalExp {
		out[label] = append([]FeatureWeight(nil), exp...)
	}
	return out
}

// TopLabels returns the labels with the highest predicted probability,
// best first. It is nil unless top_labels was requested.
func (e *Explanation) TopLabels() []int {
	return append([]int(nil), e.topLabels...)
}

// AvailableLabels returns the explained labels, in top-label order when
// available and ascending otherwise.
func (e *Explanation) AvailableLabels() []int {
	if len(e.topLabels) > 0 {
		return e.TopLabels()
	}
	labels := make([]int, 0, len(e.LocalExp))
	for label := range e.LocalExp {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

func (e *Explanation) className(label int) string {
	if label >= 0 && label < len(e.ClassNames) {
		return e.ClassNames[label]
	}
	return fmt.Sprint(label)
}

// String renders the explanation as text: the black-box prediction, then
// per label the surrogate summary and its weighted features, then the
// instance's feature values.
func (e *Explanation) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	if e.Mode == ModeRegression {
		fmt.Fprintf(tw, "Predicted value\t%.4f\t(min %.2f, max %.2f)\n", e.PredictedValue, e.MinValue, e.MaxValue)
	} else {
		fmt.Fprintln(tw, "Prediction probabilities")
		for k, p := range e.PredictProba {
			fmt.Fprintf(tw, "  %s\t%.2f\n", e.className(k), p)
		}
	}

	for _, label := range e.AvailableLabels() {
		fmt.Fprintln(tw)
		if e.Mode == ModeRegression {
			fmt.Fprintln(tw, "Explanation")
		} else {
			fmt.Fprintf(tw, "Explanation for class %s\n", e.className(label))
		}
		fmt.Fprintf(tw, "  intercept\t%.4f\n", e.Intercept[label])
		fmt.Fprintf(tw, "  prediction_local\t%.4f\n", e.LocalPred[label])
		fmt.Fprintf(tw, "  score\t%.4f\n", e.Score[label])
		for _, fw := range e.LocalExp[label] {
			fmt.Fprintf(tw, "  %s\t%+.4f\t%s\n", fw.Feature, fw.Weight, bar(fw.Weight, e.LocalExp[label]))
		}
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Feature values")
	seen := make(map[int]bool)
	for _, label := range e.AvailableLabels() {
		for _, fw := range e.LocalExp[label] {
			if seen[fw.Index] {
				continue
			}
			seen[fw.Index] = true
			fmt.Fprintf(tw, "  %s\t%s\n", e.FeatureNames[fw.Index], e.FeatureValues[fw.Index])
		}
	}
	tw.Flush()
	return b.String()
}

// bar draws |w| relative to the largest weight of the label.
func bar(w float64, exp []FeatureWeight) string {
	const width = 20
	maxAbs := 0.0
	for _, fw := range exp {
		maxAbs = math.Max(maxAbs, math.Abs(fw.Weight))
	}
	if maxAbs == 0 {
		return ""
	}
	n := int(math.Round(width * math.Abs(w) / maxAbs))
	if w < 0 {
		return strings.Repeat("-", n)
	}
	return strings.Repeat("+", n)
}

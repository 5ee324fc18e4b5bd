package forecast

import (
	"math"
	"sort"
)

// LabelEncoder is a bijection from category label to dense integer code,
// fit once at training. Transform rejects labels outside the fitted
// vocabulary.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

func fitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e := &LabelEncoder{Classes: classes}
	e.buildIndex()
	return e
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

func (e *LabelEncoder) transform(feature, value string) (float64, error) {
	if e.index == nil {
		// Reloaded from a persisted artifact; rebuild the lookup.
		e.buildIndex()
	}
	code, ok := e.index[value]
	if !ok {
		return 0, &UnknownCategoryError{Feature: feature, Value: value}
	}
	return float64(code), nil
}

// EncoderSet bundles the four fitted encoders persisted with the models.
type EncoderSet struct {
	Discharge *LabelEncoder `json:"discharge"`
	Swelling  *LabelEncoder `json:"swelling"`
	Behavior  *LabelEncoder `json:"behavior"`
	Breed     *LabelEncoder `json:"breed"`
}

// FitEncoders builds vocabularies from the feature rows. Each observation
// vocabulary is the union of all three lag depths, so a label seen at any
// depth is encodable at every depth.
func FitEncoders(rows []FeatureRow) *EncoderSet {
	var discharge, swelling, behavior, breed []string
	for _, r := range rows {
		for k := 0; k < lagDepth; k++ {
			discharge = append(discharge, r.DischargeLag[k])
			swelling = append(swelling, r.SwellingLag[k])
			behavior = append(behavior, r.BehaviorLag[k])
		}
		breed = append(breed, r.Breed)
	}
	return &EncoderSet{
		Discharge: fitLabelEncoder(discharge),
		Swelling:  fitLabelEncoder(swelling),
		Behavior:  fitLabelEncoder(behavior),
		Breed:     fitLabelEncoder(breed),
	}
}

// Vectorize encodes one row into the FeatureColumns order. Undefined
// numeric features are zero-filled so training and prediction see the same
// representation. Unknown categories abort with UnknownCategoryError.
func (es *EncoderSet) Vectorize(row FeatureRow) ([]float64, error) {
	breedCode, err := es.Breed.transform("breed", row.Breed)
	if err != nil {
		return nil, err
	}

	vec := make([]float64, 0, len(FeatureColumns))
	vec = append(vec, row.AgeDays, row.Weight, row.DaysSinceCalving, breedCode)

	for k := 0; k < lagDepth; k++ {
		dischargeCode, err := es.Discharge.transform(FeatureColumns[5+4*k], row.DischargeLag[k])
		if err != nil {
			return nil, err
		}
		swellingCode, err := es.Swelling.transform(FeatureColumns[6+4*k], row.SwellingLag[k])
		if err != nil {
			return nil, err
		}
		behaviorCode, err := es.Behavior.transform(FeatureColumns[7+4*k], row.BehaviorLag[k])
		if err != nil {
			return nil, err
		}
		vec = append(vec, row.MountLag[k], dischargeCode, swellingCode, behaviorCode)
	}

	vec = append(vec, row.IntervalLag1, row.IntervalLag2, row.AvgIntervals)

	for i, v := range vec {
		if math.IsNaN(v) {
			vec[i] = 0
		}
	}
	return vec, nil
}

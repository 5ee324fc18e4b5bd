package forecast

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLabelEncoderFitTransform(t *testing.T) {
	e := fitLabelEncoder([]string{"clear", "bloody", "clear", "unknown"})

	if len(e.Classes) != 3 {
		t.Fatalf("got %d classes, want 3", len(e.Classes))
	}
	// Sorted vocabulary gives stable codes.
	want := []string{"bloody", "clear", "unknown"}
	for i, c := range want {
		if e.Classes[i] != c {
			t.Errorf("Classes[%d] = %q, want %q", i, e.Classes[i], c)
		}
	}

	code, err := e.transform("discharge", "clear")
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if code != 1 {
		t.Errorf("code = %v, want 1", code)
	}
}

func TestLabelEncoderRejectsUnseen(t *testing.T) {
	e := fitLabelEncoder([]string{"clear", "unknown"})

	_, err := e.transform("discharge", "bloody")
	if err == nil {
		t.Fatal("expected error for unseen category")
	}
	var unknownErr *UnknownCategoryError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("error type = %T, want *UnknownCategoryError", err)
	}
	if unknownErr.Feature != "discharge" || unknownErr.Value != "bloody" {
		t.Errorf("error context = %q %q", unknownErr.Feature, unknownErr.Value)
	}
}

func TestLabelEncoderSurvivesJSONRoundTrip(t *testing.T) {
	e := fitLabelEncoder([]string{"a", "b", "c"})

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var reloaded LabelEncoder
	if err := json.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	code, err := reloaded.transform("breed", "b")
	if err != nil {
		t.Fatalf("transform after reload failed: %v", err)
	}
	if code != 1 {
		t.Errorf("code = %v, want 1", code)
	}
	if _, err := reloaded.transform("breed", "z"); err == nil {
		t.Error("reloaded encoder should still reject unseen categories")
	}
}

func TestFitEncodersUnionsAcrossLags(t *testing.T) {
	// A value appearing only at lag-3 must be encodable at lag-1.
	row := FeatureRow{
		Breed:        "Angus",
		DischargeLag: [lagDepth]string{"clear", "clear", "bloody"},
		SwellingLag:  [lagDepth]string{"mild", "mild", "mild"},
		BehaviorLag:  [lagDepth]string{"restless", "restless", "restless"},
	}
	es := FitEncoders([]FeatureRow{row})

	if _, err := es.Discharge.transform("vaginal_discharge_lag1", "bloody"); err != nil {
		t.Errorf("lag-3 value should be in shared vocabulary: %v", err)
	}
}

func TestVectorizeOrderAndZeroFill(t *testing.T) {
	rows := BuildFeatures([]HeatRecord{
		cowRecord("cow-1", day(2025, 1, 1), "clear", "mild", "restless", true),
		cowRecord("cow-1", day(2025, 1, 22), "clear", "mild", "restless", true),
	})
	es := FitEncoders(rows)

	// Second row: interval_lag2 and avg are undefined and must zero-fill.
	vec, err := es.Vectorize(rows[1])
	if err != nil {
		t.Fatalf("Vectorize failed: %v", err)
	}
	if len(vec) != len(FeatureColumns) {
		t.Fatalf("vector has %d entries, want %d", len(vec), len(FeatureColumns))
	}
	if vec[16] != 21 { // interval_lag1
		t.Errorf("interval_lag1 = %v, want 21", vec[16])
	}
	if vec[17] != 0 || vec[18] != 0 {
		t.Errorf("undefined intervals should zero-fill, got %v %v", vec[17], vec[18])
	}
	if vec[1] != 500 { // weight
		t.Errorf("weight = %v, want 500", vec[1])
	}
	if vec[4] != 1 { // allows_mounting_lag1
		t.Errorf("allows_mounting_lag1 = %v, want 1", vec[4])
	}
}

func TestVectorizePropagatesUnknownCategory(t *testing.T) {
	rows := BuildFeatures([]HeatRecord{
		cowRecord("cow-1", day(2025, 1, 1), "clear", "mild", "restless", true),
		cowRecord("cow-1", day(2025, 1, 22), "clear", "mild", "restless", true),
	})
	es := FitEncoders(rows)

	stale := rows[1]
	stale.BehaviorLag[1] = "aggressive"

	_, err := es.Vectorize(stale)
	var unknownErr *UnknownCategoryError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("error = %v, want *UnknownCategoryError", err)
	}
	if unknownErr.Feature != "behavior_lag2" {
		t.Errorf("Feature = %q, want behavior_lag2", unknownErr.Feature)
	}
}

package forecast

import "fmt"

// NoDataError means the heat_events table is empty for the tracked herd.
type NoDataError struct{}

func (e *NoDataError) Error() string {
	return "no heat event data available"
}

// InsufficientDataError means the corpus survived loading but is too small
// to fit on. Raw counts every loaded record, Filtered counts rows left
// after the target/weight/interval filter.
type InsufficientDataError struct {
	Raw      int
	Filtered int
}

func (e *InsufficientDataError) Error() string {
	if e.Raw < MinCorpusRecords {
		return fmt.Sprintf("need at least %d heat records to train, have %d", MinCorpusRecords, e.Raw)
	}
	return fmt.Sprintf("insufficient data after filtering: %d usable rows, need %d", e.Filtered, MinTrainingRows)
}

type CattleNotFoundError struct {
	CattleID string
}

func (e *CattleNotFoundError) Error() string {
	return fmt.Sprintf("cattle %s not found", e.CattleID)
}

// InsufficientHistoryError means the cow exists but has fewer heat records
// than the two full lag intervals require.
type InsufficientHistoryError struct {
	CattleID string
	Records  int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("cattle %s needs at least %d heat records, has %d", e.CattleID, MinCattleHistory, e.Records)
}

type ModelNotTrainedError struct{}

func (e *ModelNotTrainedError) Error() string {
	return "models not trained, run train first"
}

// UnknownCategoryError means an inference-time category was never seen at
// training. The fitted model is stale relative to the data and must be
// retrained; the value is never silently bucketed.
type UnknownCategoryError struct {
	Feature string
	Value   string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for feature %s, model requires retraining", e.Value, e.Feature)
}

package forecast

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"livestock-heat-api/models"
)

const (
	highConfidenceMaxDiff   = 2.0
	mediumConfidenceMaxDiff = 5.0

	// ForecastChannel carries fresh forecasts to live subscribers.
	ForecastChannel = "herdflow:forecasts"
)

var (
	trainingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herdflow_forecast_trainings_total",
		Help: "Total number of successful training runs.",
	})
	trainingsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herdflow_forecast_training_failures_total",
		Help: "Total number of failed training runs.",
	})
	predictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herdflow_forecast_predictions_total",
		Help: "Total number of successful heat forecasts.",
	})
	predictionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herdflow_forecast_prediction_failures_total",
		Help: "Total number of failed heat forecasts.",
	})
	trainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "herdflow_forecast_train_duration_seconds",
		Help:    "Duration of a full training run.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
	predictDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "herdflow_forecast_predict_duration_seconds",
		Help:    "Duration of a single heat forecast.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
	})
)

// Publisher is the pub/sub sink for fresh forecasts; the redis cache
// service satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type TrainResult struct {
	RecordsUsed  int       `json:"records_used"`
	FeatureCount int       `json:"feature_count"`
	RawRecords   int       `json:"raw_records"`
	ModelVersion string    `json:"model_version"`
	TrainedAt    time.Time `json:"trained_at"`
}

type Forecast struct {
	CattleID              string  `json:"cattle_id"`
	LastHeatDate          string  `json:"last_heat_date"`
	PredictedDaysRF       float64 `json:"predicted_days_rf"`
	PredictedDaysGBT      float64 `json:"predicted_days_gbt"`
	PredictedDaysMean     float64 `json:"predicted_days_mean"`
	PredictedNextHeatDate string  `json:"predicted_next_heat_date"`
	DaysUntilHeat         int     `json:"days_until_heat"`
	TotalHeatRecords      int     `json:"total_heat_records"`
	Confidence            string  `json:"confidence"`
	ModelVersion          string  `json:"model_version"`
}

// Service coordinates the forecasting pipeline: it gates data
// sufficiency, drives training and single-cow prediction, and owns the
// lazily loaded in-memory artifact.
type Service struct {
	loader    HistoryLoader
	store     *ModelStore
	db        *gorm.DB  // optional, persists forecasts
	publisher Publisher // optional, streams forecasts
	now       func() time.Time

	mu       sync.RWMutex
	artifact *Artifact
}

func NewService(loader HistoryLoader, store *ModelStore, db *gorm.DB, publisher Publisher) *Service {
	return &Service{
		loader:    loader,
		store:     store,
		db:        db,
		publisher: publisher,
		now:       time.Now,
	}
}

// Train fits both regressors on the full corpus and persists the artifact
// set. It never runs implicitly; predictions require a prior Train.
func (s *Service) Train(ctx context.Context) (*TrainResult, error) {
	start := time.Now()
	defer func() {
		trainDuration.Observe(time.Since(start).Seconds())
	}()

	result, err := s.train(ctx)
	if err != nil {
		trainingsFailed.Inc()
		return nil, err
	}
	trainingsTotal.Inc()
	return result, nil
}

func (s *Service) train(ctx context.Context) (*TrainResult, error) {
	records, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) < MinCorpusRecords {
		return nil, &InsufficientDataError{Raw: len(records)}
	}

	rows := BuildFeatures(records)
	encoders := FitEncoders(rows)

	var training []FeatureRow
	for _, r := range rows {
		if r.Trainable() {
			training = append(training, r)
		}
	}
	if len(training) < MinTrainingRows {
		return nil, &InsufficientDataError{Raw: len(records), Filtered: len(training)}
	}

	X := make([][]float64, len(training))
	y := make([]float64, len(training))
	for i, r := range training {
		vec, err := encoders.Vectorize(r)
		if err != nil {
			return nil, fmt.Errorf("vectorize training row: %w", err)
		}
		X[i] = vec
		y[i] = r.TargetDays
	}

	forest := FitRandomForest(X, y, RandomSeed)
	boost := FitGradientBoost(X, y)

	trainedAt := s.now().UTC()
	artifact := &Artifact{
		Version:        trainedAt.Format("20060102T150405.000000000"),
		TrainedAt:      trainedAt,
		FeatureColumns: FeatureColumns,
		Forest:         forest,
		Boost:          boost,
		Encoders:       encoders,
	}
	if err := s.store.Save(artifact); err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	s.mu.Lock()
	s.artifact = artifact
	s.mu.Unlock()

	log.Printf("forecast models trained: %d/%d rows, %d features, version=%s",
		len(training), len(records), len(FeatureColumns), artifact.Version)

	return &TrainResult{
		RecordsUsed:  len(training),
		FeatureCount: len(FeatureColumns),
		RawRecords:   len(records),
		ModelVersion: artifact.Version,
		TrainedAt:    trainedAt,
	}, nil
}

// Predict forecasts the next heat event for one cow from its most recent
// feature row. The artifact is loaded lazily on first use after a restart.
func (s *Service) Predict(ctx context.Context, cattleID string) (*Forecast, error) {
	start := time.Now()
	defer func() {
		predictDuration.Observe(time.Since(start).Seconds())
	}()

	forecast, err := s.predict(ctx, cattleID)
	if err != nil {
		predictionsFailed.Inc()
		return nil, err
	}
	predictionsTotal.Inc()
	return forecast, nil
}

func (s *Service) predict(ctx context.Context, cattleID string) (*Forecast, error) {
	artifact, err := s.currentArtifact()
	if err != nil {
		return nil, err
	}

	records, err := s.loader.LoadCattle(ctx, cattleID)
	if err != nil {
		return nil, err
	}
	if len(records) < MinCattleHistory {
		return nil, &InsufficientHistoryError{CattleID: cattleID, Records: len(records)}
	}

	rows := BuildFeatures(records)

	// Most recent row with a computable first interval. With >=3 records
	// the last row always qualifies.
	var last *FeatureRow
	for i := len(rows) - 1; i >= 0; i-- {
		if !math.IsNaN(rows[i].IntervalLag1) {
			last = &rows[i]
			break
		}
	}
	if last == nil {
		return nil, &InsufficientHistoryError{CattleID: cattleID, Records: len(records)}
	}

	vec, err := artifact.Encoders.Vectorize(*last)
	if err != nil {
		return nil, err
	}
	if len(vec) != len(artifact.FeatureColumns) {
		return nil, fmt.Errorf("feature vector has %d columns, artifact expects %d",
			len(vec), len(artifact.FeatureColumns))
	}

	predRF := artifact.Forest.Predict(vec)
	predGBT := artifact.Boost.Predict(vec)
	predMean := (predRF + predGBT) / 2

	lastHeatDate := last.HeatDate
	predictedDate := lastHeatDate.AddDate(0, 0, int(math.Round(predMean)))
	today := s.now().UTC().Truncate(24 * time.Hour)
	daysUntil := int(daysBetween(today, predictedDate))

	forecast := &Forecast{
		CattleID:              cattleID,
		LastHeatDate:          lastHeatDate.Format("2006-01-02"),
		PredictedDaysRF:       round2(predRF),
		PredictedDaysGBT:      round2(predGBT),
		PredictedDaysMean:     round2(predMean),
		PredictedNextHeatDate: predictedDate.Format("2006-01-02"),
		DaysUntilHeat:         daysUntil,
		TotalHeatRecords:      len(records),
		Confidence:            confidenceLabel(predRF, predGBT),
		ModelVersion:          artifact.Version,
	}

	s.persistForecast(ctx, forecast, lastHeatDate, predictedDate)
	s.publishForecast(ctx, forecast)

	return forecast, nil
}

func (s *Service) currentArtifact() (*Artifact, error) {
	s.mu.RLock()
	artifact := s.artifact
	s.mu.RUnlock()
	if artifact != nil {
		return artifact, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact != nil {
		return s.artifact, nil
	}
	loaded, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	log.Printf("forecast artifact loaded: version=%s", loaded.Version)
	s.artifact = loaded
	return loaded, nil
}

func (s *Service) persistForecast(ctx context.Context, f *Forecast, lastHeat, predicted time.Time) {
	if s.db == nil {
		return
	}
	row := models.HeatPrediction{
		TS:                s.now().UTC().Truncate(time.Second),
		CattleID:          f.CattleID,
		LastHeatDate:      lastHeat,
		PredictedDaysRF:   f.PredictedDaysRF,
		PredictedDaysGBT:  f.PredictedDaysGBT,
		PredictedDaysMean: f.PredictedDaysMean,
		PredictedDate:     predicted,
		DaysUntil:         f.DaysUntilHeat,
		Confidence:        f.Confidence,
		ModelVersion:      f.ModelVersion,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ts"}, {Name: "cattle_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		log.Printf("forecast store failed for cattle=%s: %v", f.CattleID, err)
	}
}

func (s *Service) publishForecast(ctx context.Context, f *Forecast) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ForecastChannel, f); err != nil {
		log.Printf("forecast publish failed for cattle=%s: %v", f.CattleID, err)
	}
}

// confidenceLabel grades model agreement: under 2 days apart is High,
// under 5 Medium, anything wider Low.
func confidenceLabel(a, b float64) string {
	switch diff := math.Abs(a - b); {
	case diff < highConfidenceMaxDiff:
		return "High"
	case diff < mediumConfidenceMaxDiff:
		return "Medium"
	default:
		return "Low"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package cluster

import (
	"context"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/stat"
)

var (
	clusterTrainings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herdflow_cluster_trainings_total",
		Help: "Total number of successful cluster training runs.",
	})
	clusterAssignments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "herdflow_cluster_assignments_total",
		Help: "Total number of cluster assignments served.",
	})
)

// ClusterMeans are the per-cluster feature averages reported after
// training.
type ClusterMeans struct {
	AvgEvents     float64 `json:"avg_events"`
	AvgVaccines   float64 `json:"avg_vaccines"`
	AvgTreatments float64 `json:"avg_treatments"`
	AvgIllnesses  float64 `json:"avg_illnesses"`
}

type TrainResult struct {
	TotalCattle     int                  `json:"total_cattle"`
	ClustersCreated int                  `json:"clusters_created"`
	Distribution    map[int]int          `json:"cluster_distribution"`
	Stats           map[int]ClusterMeans `json:"cluster_stats"`
}

// Assignment is one cow's cluster placement plus the rule-derived
// attention level.
type Assignment struct {
	CattleID       string      `json:"cattle_id"`
	Name           string      `json:"name"`
	Lot            *string     `json:"lot"`
	ClusterID      int         `json:"cluster_id"`
	AttentionLevel string      `json:"attention_level"`
	Stats          HealthStats `json:"health_stats"`
}

type HerdClusters struct {
	TotalCattle int          `json:"total_cattle"`
	Cattle      []Assignment `json:"cattle"`
}

type fittedModel struct {
	scaler *StandardScaler
	kmeans *KMeans
}

// Service groups the herd by medical attention profile. The model lives
// in memory only; Assign and All train it on first use.
type Service struct {
	loader StatsLoader

	mu    sync.RWMutex
	model *fittedModel
}

func NewService(loader StatsLoader) *Service {
	return &Service{loader: loader}
}

// Train refits the clusters on the whole herd.
func (s *Service) Train(ctx context.Context) (*TrainResult, error) {
	stats, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(stats) < MinClusterCattle {
		return nil, &InsufficientCattleError{Cattle: len(stats)}
	}

	X := make([][]float64, len(stats))
	for i, st := range stats {
		X[i] = st.features()
	}
	scaler := fitScaler(X)
	kmeans := fitKMeans(scaler.transformAll(X), NumClusters)
	model := &fittedModel{scaler: scaler, kmeans: kmeans}

	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	clusterTrainings.Inc()

	distribution := make(map[int]int, NumClusters)
	grouped := make(map[int][][]float64, NumClusters)
	for i, st := range stats {
		c := kmeans.Predict(scaler.transform(st.features()))
		distribution[c]++
		grouped[c] = append(grouped[c], X[i])
	}

	means := make(map[int]ClusterMeans, len(grouped))
	for c, rows := range grouped {
		means[c] = clusterMeans(rows)
	}

	log.Printf("herd clusters trained: %d cattle into %d clusters", len(stats), NumClusters)

	return &TrainResult{
		TotalCattle:     len(stats),
		ClustersCreated: NumClusters,
		Distribution:    distribution,
		Stats:           means,
	}, nil
}

// Assign places one cow. The model is trained on demand.
func (s *Service) Assign(ctx context.Context, cattleID string) (*Assignment, error) {
	stats, err := s.loader.LoadCattle(ctx, cattleID)
	if err != nil {
		return nil, err
	}

	model, err := s.currentModel(ctx)
	if err != nil {
		return nil, err
	}

	clusterAssignments.Inc()
	return s.assignment(model, *stats), nil
}

// All places every cow in the herd.
func (s *Service) All(ctx context.Context) (*HerdClusters, error) {
	stats, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	model, err := s.currentModel(ctx)
	if err != nil {
		return nil, err
	}

	assignments := make([]Assignment, len(stats))
	for i, st := range stats {
		assignments[i] = *s.assignment(model, st)
	}
	clusterAssignments.Add(float64(len(stats)))

	return &HerdClusters{
		TotalCattle: len(assignments),
		Cattle:      assignments,
	}, nil
}

func (s *Service) assignment(model *fittedModel, stats HealthStats) *Assignment {
	return &Assignment{
		CattleID:       stats.CattleID,
		Name:           stats.Name,
		Lot:            stats.Lot,
		ClusterID:      model.kmeans.Predict(model.scaler.transform(stats.features())),
		AttentionLevel: attentionLevel(stats),
		Stats:          stats,
	}
}

func (s *Service) currentModel(ctx context.Context) (*fittedModel, error) {
	s.mu.RLock()
	model := s.model
	s.mu.RUnlock()
	if model != nil {
		return model, nil
	}
	if _, err := s.Train(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, nil
}

// attentionLevel grades a cow by its health-event mix, independent of the
// learned clusters.
func attentionLevel(s HealthStats) string {
	switch {
	case s.TotalEvents <= 1:
		return "Healthy"
	case s.Vaccines >= 3 && s.Treatments <= 1 && s.Illnesses == 0:
		return "Routine Maintenance"
	case s.Illnesses >= 2 || s.Treatments >= 4:
		return "High Medical Attention"
	case s.Treatments >= 2:
		return "Under Treatment"
	default:
		return "Routine Maintenance"
	}
}

func clusterMeans(rows [][]float64) ClusterMeans {
	cols := make([][]float64, 4)
	for d := range cols {
		cols[d] = make([]float64, len(rows))
		for i, row := range rows {
			cols[d][i] = row[d]
		}
	}
	return ClusterMeans{
		AvgEvents:     stat.Mean(cols[0], nil),
		AvgVaccines:   stat.Mean(cols[1], nil),
		AvgTreatments: stat.Mean(cols[2], nil),
		AvgIllnesses:  stat.Mean(cols[3], nil),
	}
}

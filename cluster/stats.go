package cluster

import (
	"context"
	"fmt"

	"livestock-heat-api/models"

	"gorm.io/gorm"
)

// HealthStats is one cow's aggregated health-event profile, the feature
// space the clusters are built over.
type HealthStats struct {
	CattleID    string  `json:"cattle_id"`
	Name        string  `json:"name"`
	Lot         *string `json:"lot"`
	TotalEvents int     `json:"total_events"`
	Vaccines    int     `json:"vaccines"`
	Treatments  int     `json:"treatments"`
	Illnesses   int     `json:"illnesses"`
}

func (s HealthStats) features() []float64 {
	return []float64{
		float64(s.TotalEvents),
		float64(s.Vaccines),
		float64(s.Treatments),
		float64(s.Illnesses),
	}
}

// StatsLoader provides per-cow health aggregates.
type StatsLoader interface {
	// LoadAll returns stats for every cow, cows without events included.
	LoadAll(ctx context.Context) ([]HealthStats, error)
	// LoadCattle returns one cow's stats. Fails with CattleNotFoundError.
	LoadCattle(ctx context.Context, cattleID string) (*HealthStats, error)
}

// DBStatsLoader aggregates health events in Postgres.
type DBStatsLoader struct {
	db *gorm.DB
}

func NewDBStatsLoader(db *gorm.DB) *DBStatsLoader {
	return &DBStatsLoader{db: db}
}

func (l *DBStatsLoader) statsQuery(ctx context.Context) *gorm.DB {
	return l.db.WithContext(ctx).
		Model(&models.Cattle{}).
		Select(`cattle.id AS cattle_id,
			cattle.name,
			cattle.lot,
			COUNT(health_events.id) AS total_events,
			COUNT(CASE WHEN health_events.event_type = 'vaccine' THEN 1 END) AS vaccines,
			COUNT(CASE WHEN health_events.event_type = 'treatment' THEN 1 END) AS treatments,
			COUNT(CASE WHEN health_events.event_type = 'illness' THEN 1 END) AS illnesses`).
		Joins("LEFT JOIN health_events ON cattle.id = health_events.cattle_id").
		Group("cattle.id, cattle.name, cattle.lot")
}

func (l *DBStatsLoader) LoadAll(ctx context.Context) ([]HealthStats, error) {
	var stats []HealthStats
	err := l.statsQuery(ctx).
		Order("cattle.id").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("query health stats: %w", err)
	}
	return stats, nil
}

func (l *DBStatsLoader) LoadCattle(ctx context.Context, cattleID string) (*HealthStats, error) {
	var stats []HealthStats
	err := l.statsQuery(ctx).
		Where("cattle.id = ?", cattleID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("query health stats for %s: %w", cattleID, err)
	}
	if len(stats) == 0 {
		return nil, &CattleNotFoundError{CattleID: cattleID}
	}
	return &stats[0], nil
}

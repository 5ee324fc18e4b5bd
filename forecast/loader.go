package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HeatRecord is one observed heat event joined with the owning cow's
// current attributes. The join is a snapshot: weight and breed are the
// cow's values at load time, not at the event date.
type HeatRecord struct {
	ID                 string
	CattleID           string
	HeatDate           time.Time
	AllowsMounting     bool
	VaginalDischarge   string // empty when unobserved
	VulvaSwelling      string
	Behavior           string
	WasInseminated     bool
	PregnancyConfirmed *bool
	BirthDate          time.Time
	Weight             *float64
	LastCalvingDate    *time.Time
	Breed              string // empty when unknown
}

// HistoryLoader provides the read-only heat history surface the
// forecasting core consumes.
type HistoryLoader interface {
	// LoadAll returns every heat record for female cattle ordered by
	// (cattle_id, heat_date). Fails with NoDataError when empty.
	LoadAll(ctx context.Context) ([]HeatRecord, error)
	// LoadCattle returns one cow's records ordered by heat_date. Fails
	// with CattleNotFoundError or InsufficientHistoryError (<3 records).
	LoadCattle(ctx context.Context, cattleID string) ([]HeatRecord, error)
}

const historySelect = `
	SELECT
		he.id,
		he.cattle_id,
		he.heat_date,
		he.allows_mounting,
		he.vaginal_discharge,
		he.vulva_swelling,
		he.behavior,
		he.was_inseminated,
		he.pregnancy_confirmed,
		c.birth_date,
		c.weight,
		c.last_calving_date,
		c.breed
	FROM heat_events he
	JOIN cattle c ON he.cattle_id = c.id`

// DBHistoryLoader loads heat history from Postgres.
type DBHistoryLoader struct {
	pool *pgxpool.Pool
}

func NewDBHistoryLoader(pool *pgxpool.Pool) *DBHistoryLoader {
	return &DBHistoryLoader{pool: pool}
}

func (l *DBHistoryLoader) LoadAll(ctx context.Context) ([]HeatRecord, error) {
	rows, err := l.pool.Query(ctx, historySelect+`
		WHERE c.gender = 'female'
		ORDER BY he.cattle_id, he.heat_date`)
	if err != nil {
		return nil, fmt.Errorf("query heat history: %w", err)
	}
	defer rows.Close()

	records, err := scanHeatRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NoDataError{}
	}
	return records, nil
}

func (l *DBHistoryLoader) LoadCattle(ctx context.Context, cattleID string) ([]HeatRecord, error) {
	var gender string
	err := l.pool.QueryRow(ctx,
		`SELECT gender FROM cattle WHERE id = $1`, cattleID,
	).Scan(&gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &CattleNotFoundError{CattleID: cattleID}
	}
	if err != nil {
		return nil, fmt.Errorf("query cattle %s: %w", cattleID, err)
	}
	if gender != "female" {
		return nil, fmt.Errorf("cattle %s is not female, heat forecasting does not apply", cattleID)
	}

	var count int
	err = l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM heat_events WHERE cattle_id = $1`, cattleID,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count heat events for %s: %w", cattleID, err)
	}
	if count < MinCattleHistory {
		return nil, &InsufficientHistoryError{CattleID: cattleID, Records: count}
	}

	rows, err := l.pool.Query(ctx, historySelect+`
		WHERE he.cattle_id = $1
		ORDER BY he.heat_date`, cattleID)
	if err != nil {
		return nil, fmt.Errorf("query heat history for %s: %w", cattleID, err)
	}
	defer rows.Close()

	return scanHeatRecords(rows)
}

func scanHeatRecords(rows pgx.Rows) ([]HeatRecord, error) {
	var records []HeatRecord
	for rows.Next() {
		var (
			r         HeatRecord
			discharge *string
			swelling  *string
			behavior  *string
			breed     *string
		)
		err := rows.Scan(
			&r.ID, &r.CattleID, &r.HeatDate, &r.AllowsMounting,
			&discharge, &swelling, &behavior,
			&r.WasInseminated, &r.PregnancyConfirmed,
			&r.BirthDate, &r.Weight, &r.LastCalvingDate, &breed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan heat record: %w", err)
		}
		r.VaginalDischarge = deref(discharge)
		r.VulvaSwelling = deref(swelling)
		r.Behavior = deref(behavior)
		r.Breed = deref(breed)
		records = append(records, r)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate heat records: %w", rows.Err())
	}
	return records, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

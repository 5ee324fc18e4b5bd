package models

import "time"

// HeatPrediction is the stored output of a forecast run, one row per
// (cattle, last observed heat event).
type HeatPrediction struct {
	TS                time.Time `gorm:"column:ts;primaryKey" json:"ts"`
	CattleID          string    `gorm:"column:cattle_id;primaryKey" json:"cattle_id"`
	LastHeatDate      time.Time `gorm:"column:last_heat_date" json:"last_heat_date"`
	PredictedDaysRF   float64   `gorm:"column:predicted_days_rf" json:"predicted_days_rf"`
	PredictedDaysGBT  float64   `gorm:"column:predicted_days_gbt" json:"predicted_days_gbt"`
	PredictedDaysMean float64   `gorm:"column:predicted_days_mean" json:"predicted_days_mean"`
	PredictedDate     time.Time `gorm:"column:predicted_date" json:"predicted_date"`
	DaysUntil         int       `gorm:"column:days_until" json:"days_until"`
	Confidence        string    `gorm:"column:confidence" json:"confidence"`
	ModelVersion      string    `gorm:"column:model_version" json:"model_version"`
}

func (HeatPrediction) TableName() string { return "heat_predictions" }

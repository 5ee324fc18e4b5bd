package models

import "time"

type Cattle struct {
	ID              string     `gorm:"column:id;primaryKey" json:"id"`
	Name            string     `gorm:"column:name" json:"name"`
	Gender          string     `gorm:"column:gender" json:"gender"`
	Breed           *string    `gorm:"column:breed" json:"breed"`
	Lot             *string    `gorm:"column:lot" json:"lot"`
	BirthDate       time.Time  `gorm:"column:birth_date" json:"birth_date"`
	Weight          *float64   `gorm:"column:weight" json:"weight"`
	LastCalvingDate *time.Time `gorm:"column:last_calving_date" json:"last_calving_date"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Cattle) TableName() string { return "cattle" }

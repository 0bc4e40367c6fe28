package models

// RaceResult is one classified result joined with its race, circuit,
// driver and constructor
type RaceResult struct {
	ID             uint    `gorm:"primaryKey" json:"-"`
	RaceID         string  `gorm:"index;not null" json:"race_id"`
	Year           int     `gorm:"index;not null" json:"year"`
	Decade         int     `gorm:"index;not null" json:"decade"`
	RaceName       string  `json:"race_name"`
	CircuitName    string  `gorm:"index" json:"circuit_name"`
	DriverID       string  `gorm:"not null" json:"driver_id"`
	DriverFullName string  `gorm:"index;not null" json:"driver_full_name"`
	TeamName       string  `gorm:"index;not null" json:"team_name"`
	Position       *int    `json:"position,omitempty"`
	Points         float64 `json:"points"`
	IsWin          bool    `gorm:"default:false" json:"is_win"`
	IsPodium       bool    `gorm:"default:false" json:"is_podium"`
}

// TableName specifies the table name for GORM
func (RaceResult) TableName() string {
	return "race_results"
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Competition statuses. Transitions are driven through the status endpoint
// and guarded by the handle_status capability.
const (
	StatusRecruiting = "recruiting"
	StatusClosed     = "closed"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusRecruiting, StatusClosed, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// JSONMap stores an opaque JSON object in a jsonb column. The tournament and
// content blobs are never interpreted by this service.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for JSONMap")
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

type Competition struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Slug         string    `gorm:"index" json:"slug"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	CreatorID    *string   `gorm:"type:uuid;index" json:"creator_id"`
	Creator      *Account  `gorm:"constraint:OnDelete:SET NULL" json:"creator,omitempty"`
	Status       string    `gorm:"default:recruiting;not null" json:"status"`
	Introduction string    `json:"introduction"`
	Tournament   JSONMap   `gorm:"type:jsonb;default:'{}'" json:"tournament"`
	Content      JSONMap   `gorm:"type:jsonb;default:'{}'" json:"content"`
	IsTeamGame   bool      `gorm:"default:false" json:"is_team_game"`

	Rules []Rule `gorm:"constraint:OnDelete:CASCADE" json:"rules,omitempty"`
}

// Rule revisions are append-only: editing a rule at a given order writes a
// new row with depth+1. The latest set is the max-depth row per order.
type Rule struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	CompetitionID string    `gorm:"type:uuid;index;not null" json:"competition_id"`
	Content       string    `gorm:"not null" json:"content"`
	Order         int       `gorm:"column:rule_order;not null" json:"order"`
	Depth         int       `gorm:"not null" json:"depth"`
	AddedAt       time.Time `gorm:"autoCreateTime" json:"added_at"`
}

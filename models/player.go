package models

import "time"

type Team struct {
	ID            string  `gorm:"primaryKey;type:uuid" json:"id"`
	CompetitionID string  `gorm:"type:uuid;not null;uniqueIndex:idx_team_order" json:"competition_id"`
	Order         int     `gorm:"column:team_order;not null;uniqueIndex:idx_team_order" json:"order"`
	Name          string  `gorm:"not null" json:"name"`
	Introduction  *string `json:"introduction,omitempty"`
}

// Applicant is a pending join request. Either AccountID is set (platform
// identity) or AccessID/AccessPassword are (competition-local identity),
// never both. AccessPassword holds a bcrypt hash, never plaintext.
//
// Unique indexes: one applicant per account per competition, and one access_id
// per competition. Postgres skips NULLs in unique indexes, so account rows
// don't collide on the access_id index and vice versa.
type Applicant struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	CompetitionID  string       `gorm:"type:uuid;not null;uniqueIndex:idx_applicant_account;uniqueIndex:idx_applicant_access_id" json:"competition_id"`
	Competition    *Competition `json:"-"`
	AccountID      *string      `gorm:"type:uuid;uniqueIndex:idx_applicant_account" json:"account_id"`
	Account        *Account     `json:"-"`
	AccessID       *string      `gorm:"size:40;uniqueIndex:idx_applicant_access_id" json:"access_id,omitempty"`
	AccessPassword *string      `json:"-"`
	Email          *string      `json:"email,omitempty"`
	DisplayedName  string       `gorm:"size:30;not null" json:"displayed_name"`
	HiddenName     string       `gorm:"size:30" json:"hidden_name"`
	Introduction   *string      `json:"introduction,omitempty"`
	AppliedAt      time.Time    `gorm:"autoCreateTime" json:"applied_at"`
}

// Participant is a confirmed competitor. Rows are only ever created by
// accepting applicants; identity fields are copied over verbatim.
type Participant struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	CompetitionID  string       `gorm:"type:uuid;not null;uniqueIndex:idx_participant_order;uniqueIndex:idx_participant_access_id" json:"competition_id"`
	Competition    *Competition `json:"-"`
	AccountID      *string      `gorm:"type:uuid;index" json:"account_id"`
	Account        *Account     `json:"-"`
	AccessID       *string      `gorm:"size:40;uniqueIndex:idx_participant_access_id" json:"access_id,omitempty"`
	AccessPassword *string      `json:"-"`
	Email          *string      `json:"email,omitempty"`
	DisplayedName  string       `gorm:"size:30;not null" json:"displayed_name"`
	HiddenName     string       `gorm:"size:30" json:"hidden_name"`
	Introduction   *string      `json:"introduction,omitempty"`
	TeamID         *string      `gorm:"type:uuid" json:"team_id,omitempty"`
	Order          int          `gorm:"column:participant_order;not null;uniqueIndex:idx_participant_order" json:"order"`
	JoinedAt       time.Time    `gorm:"autoCreateTime" json:"joined_at"`
	LastLoginAt    time.Time    `json:"last_login_at"`
}

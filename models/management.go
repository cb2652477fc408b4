package models

// Action identifies a class of competition mutations, each gated by one
// capability flag on Management.
type Action string

const (
	ActionRules        Action = "rules"
	ActionContent      Action = "content"
	ActionApplicants   Action = "applicants"
	ActionParticipants Action = "participants"
	ActionStatus       Action = "status"
)

// Management is a delegated-authorization grant binding one account to one
// competition. Capabilities default to false on invite; the grant only takes
// effect once the invited account accepts it. The competition creator needs
// no Management row — the permission layer short-circuits for creators.
type Management struct {
	ID                 string       `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID          string       `gorm:"type:uuid;not null;uniqueIndex:idx_management_account_competition" json:"account_id"`
	Account            *Account     `json:"account,omitempty"`
	CompetitionID      string       `gorm:"type:uuid;not null;uniqueIndex:idx_management_account_competition" json:"competition_id"`
	Competition        *Competition `json:"-"`
	Nickname           string       `gorm:"not null" json:"nickname"`
	HandleRules        bool         `gorm:"default:false" json:"handle_rules"`
	HandleContent      bool         `gorm:"default:false" json:"handle_content"`
	HandleApplicants   bool         `gorm:"default:false" json:"handle_applicants"`
	HandleParticipants bool         `gorm:"default:false" json:"handle_participants"`
	HandleStatus       bool         `gorm:"default:false" json:"handle_status"`
	Accepted           bool         `gorm:"default:false" json:"accepted"`
}

// Allows reports whether this grant covers a write of the given action kind.
// Unaccepted grants allow nothing, read access included.
func (m *Management) Allows(action Action) bool {
	if !m.Accepted {
		return false
	}
	switch action {
	case ActionRules:
		return m.HandleRules
	case ActionContent:
		return m.HandleContent
	case ActionApplicants:
		return m.HandleApplicants
	case ActionParticipants:
		return m.HandleParticipants
	case ActionStatus:
		return m.HandleStatus
	}
	return false
}

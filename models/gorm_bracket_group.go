package models

// BracketGroupMember is one row of an exposure-bracket group. A group is the
// set of rows sharing GroupID, ordered by Position (capture order).
type BracketGroupMember struct {
	GroupID    string `gorm:"primaryKey" json:"group_id"`
	MemberPath string `gorm:"primaryKey;uniqueIndex" json:"member_path"` // a photo belongs to at most one group
	Position   int    `gorm:"not null" json:"position"`

	Photo *Photo `gorm:"foreignKey:MemberPath;references:Path;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (BracketGroupMember) TableName() string {
	return "bracket_groups"
}

// BracketGroup is the assembled view of a group's members.
type BracketGroup struct {
	GroupID string   `json:"group_id"`
	Members []string `json:"members"`
}

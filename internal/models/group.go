package models

// Group is a Zoom permission group.
type Group struct {
	ID           string `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name         string `gorm:"column:name;size:255;index" json:"name"`
	TotalMembers int    `gorm:"column:total_members" json:"total_members"`
}

// GroupMember is one membership row; GroupID is attached on load.
type GroupMember struct {
	ID        string `gorm:"column:id;primaryKey;size:64" json:"id"`
	GroupID   string `gorm:"column:groupId;primaryKey;size:64" json:"-"`
	Email     string `gorm:"column:email;size:255" json:"email"`
	FirstName string `gorm:"column:first_name;size:255" json:"first_name"`
	LastName  string `gorm:"column:last_name;size:255" json:"last_name"`
	Type      int    `gorm:"column:type" json:"type"`
}

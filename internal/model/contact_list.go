package model

// ContactList 联系人列表，Type 决定列表内联系人的发送路径
type ContactList struct {
	BaseModel
	PublicID int64     `gorm:"uniqueIndex;not null" json:"public_id"`
	OrgID    int64     `gorm:"not null;index" json:"org_id"`
	Name     string    `gorm:"type:varchar(255);not null" json:"name"`
	Type     Channel   `gorm:"type:varchar(16);not null" json:"type"`
	Contacts []Contact `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"contacts,omitempty"`
}

func (ContactList) TableName() string {
	return "contact_lists"
}

// Contact Identifier 按渠道不同：邮箱地址、聊天会话 ID 或 LinkedIn ID
type Contact struct {
	BaseModel
	ListID     int64  `gorm:"not null;index" json:"list_id"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	Identifier string `gorm:"type:varchar(512);not null" json:"identifier"`
}

func (Contact) TableName() string {
	return "contacts"
}

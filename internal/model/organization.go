package model

// Organization AccountSignatures 是 connected account id -> 签名正文 的映射，
// 仅邮件发送时追加
type Organization struct {
	BaseModel
	Name              string `gorm:"type:varchar(255);not null" json:"name"`
	AccountSignatures JSONB  `gorm:"type:jsonb" json:"account_signatures,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

// ConnectedAccount 已连接到网关的发送账号
type ConnectedAccount struct {
	BaseModel
	OrgID       int64   `gorm:"not null;index" json:"org_id"`
	Provider    Channel `gorm:"type:varchar(16);not null" json:"provider"`
	AccountID   string  `gorm:"type:varchar(128);uniqueIndex;not null" json:"account_id"` // 网关侧账号 ID
	DisplayName string  `gorm:"type:varchar(255)" json:"display_name"`
}

func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}

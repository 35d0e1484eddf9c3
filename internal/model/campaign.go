package model

import "time"

// CampaignStatus 活动状态机
//
//	DRAFT ----(send now)----> SENDING --> SENT
//	  |                          |
//	  v                          +------> FAILED
//	SCHEDULED --(cron 提升)------^
//	  |
//	  +--(cancel)--> DRAFT
//
// SENT / FAILED 为终态；SENDING 由触发层的 CAS 保证同一活动只进入一次
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusSending   CampaignStatus = "SENDING"
	CampaignStatusSent      CampaignStatus = "SENT"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

// IsTerminal 是否已到达终态
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusSent || s == CampaignStatusFailed
}

// Campaign 营销活动模型
// Total 在创建时一次性快照（各列表联系人数之和），之后不再重算；
// Sent/Failed 在 SENDING 期间仅由 Runner 写入，始终满足 sent+failed <= total
type Campaign struct {
	BaseModel
	PublicID    int64          `gorm:"uniqueIndex;not null" json:"public_id"`
	OrgID       int64          `gorm:"not null;index" json:"org_id"`
	UserID      string         `gorm:"type:varchar(64);not null" json:"user_id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	MessageID   int64          `gorm:"not null" json:"message_id"`
	AccountID   string         `gorm:"type:varchar(128);not null" json:"account_id"`
	Status      CampaignStatus `gorm:"type:varchar(16);not null;default:'DRAFT';index:idx_campaigns_due" json:"status"`
	Total       int            `gorm:"not null;default:0" json:"total"`
	Sent        int            `gorm:"not null;default:0" json:"sent"`
	Failed      int            `gorm:"not null;default:0" json:"failed"`
	ScheduledAt *time.Time     `gorm:"type:timestamptz;index:idx_campaigns_due" json:"scheduled_at,omitempty"`
	Tags        StringList     `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`

	Message *MessageTemplate `gorm:"foreignKey:MessageID" json:"message,omitempty"`
	Lists   []ContactList    `gorm:"many2many:campaign_lists" json:"lists,omitempty"`
	Logs    []CampaignLog    `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"logs,omitempty"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// DeliveryStatus 单次投递结果
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

// CampaignLog 每次投递尝试一行，只追加；随活动删除级联清理
type CampaignLog struct {
	BaseModel
	CampaignID        int64          `gorm:"not null;index" json:"campaign_id"`
	ContactName       string         `gorm:"type:varchar(255);not null" json:"contact_name"`
	ContactIdentifier string         `gorm:"type:varchar(512);not null" json:"contact_identifier"`
	Status            DeliveryStatus `gorm:"type:varchar(16);not null" json:"status"`
	Error             *string        `gorm:"type:text" json:"error,omitempty"`
}

func (CampaignLog) TableName() string {
	return "campaign_logs"
}

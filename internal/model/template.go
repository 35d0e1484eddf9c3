package model

// Channel 消息渠道枚举，模板与联系人列表共用
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelLinkedIn Channel = "LINKEDIN"
)

// IsChat 聊天类渠道走 chat 发送路径，邮件走 email 路径
func (c Channel) IsChat() bool {
	return c == ChannelWhatsApp || c == ChannelLinkedIn
}

// MessageTemplate 消息模板模型
// Runner 每次派发只读取一次模板；活动创建向导会克隆模板，
// 所以在途活动不受后续模板编辑影响
type MessageTemplate struct {
	BaseModel
	PublicID    int64        `gorm:"uniqueIndex;not null" json:"public_id"`
	OrgID       int64        `gorm:"not null;index" json:"org_id"`
	Name        string       `gorm:"type:varchar(255);not null" json:"name"`
	Type        Channel      `gorm:"type:varchar(16);not null" json:"type"`
	Subject     string       `gorm:"type:varchar(512)" json:"subject"` // 仅 EMAIL 使用
	Body        string       `gorm:"type:text;not null" json:"body"`
	Attachments []Attachment `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"attachments"`
}

func (MessageTemplate) TableName() string {
	return "message_templates"
}

// Attachment 模板附件，Path 指向本地上传存储
type Attachment struct {
	BaseModel
	TemplateID   int64  `gorm:"not null;index" json:"template_id"`
	FileName     string `gorm:"type:varchar(255);not null" json:"file_name"`
	OriginalName string `gorm:"type:varchar(255);not null" json:"original_name"`
	Path         string `gorm:"type:varchar(512);not null" json:"path"`
	MimeType     string `gorm:"type:varchar(128)" json:"mime_type"`
}

func (Attachment) TableName() string {
	return "attachments"
}

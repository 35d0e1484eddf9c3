package queue

// CampaignStartedMessage 活动进入 SENDING 时发布
type CampaignStartedMessage struct {
	MessageID  string `json:"message_id"`
	OccurredAt string `json:"occurred_at"`
	CampaignID int64  `json:"campaign_id"`
	OrgID      int64  `json:"org_id"`
	Channel    string `json:"channel"`
	Total      int    `json:"total"`
}

// CampaignFinishedMessage 活动收敛到终态时发布
type CampaignFinishedMessage struct {
	MessageID  string `json:"message_id"`
	OccurredAt string `json:"occurred_at"`
	Status     string `json:"status"`
	CampaignID int64  `json:"campaign_id"`
	OrgID      int64  `json:"org_id"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
}

package dto

import (
	"time"

	"Outreachly/internal/model"
)

// 对外视图统一用 public_id，内部主键不出网

type AttachmentView struct {
	FileName     string `json:"file_name"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
}

type TemplateView struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
}

type ContactView struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

type ListView struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Contacts []ContactView `json:"contacts,omitempty"`
}

type LogView struct {
	ContactName       string    `json:"contact_name"`
	ContactIdentifier string    `json:"contact_identifier"`
	Status            string    `json:"status"`
	Error             *string   `json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type CampaignView struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	AccountID   string        `json:"account_id"`
	Total       int           `json:"total"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	Tags        []string      `json:"tags"`
	CreatedAt   time.Time     `json:"created_at"`
	Message     *TemplateView `json:"message,omitempty"`
	Lists       []ListView    `json:"lists"`
	Logs        []LogView     `json:"logs,omitempty"`
}

// NewCampaignView 把模型按预加载到的关联转成视图
func NewCampaignView(c *model.Campaign) CampaignView {
	view := CampaignView{
		ID:          c.PublicID,
		Name:        c.Name,
		Status:      string(c.Status),
		AccountID:   c.AccountID,
		Total:       c.Total,
		Sent:        c.Sent,
		Failed:      c.Failed,
		ScheduledAt: c.ScheduledAt,
		Tags:        []string(c.Tags),
		CreatedAt:   c.CreatedAt,
		Lists:       make([]ListView, 0, len(c.Lists)),
	}

	if view.Tags == nil {
		view.Tags = []string{}
	}

	if c.Message != nil {
		view.Message = newTemplateView(c.Message)
	}

	for _, list := range c.Lists {
		view.Lists = append(view.Lists, newListView(&list))
	}

	for _, log := range c.Logs {
		view.Logs = append(view.Logs, LogView{
			ContactName:       log.ContactName,
			ContactIdentifier: log.ContactIdentifier,
			Status:            string(log.Status),
			Error:             log.Error,
			CreatedAt:         log.CreatedAt,
		})
	}

	return view
}

func newTemplateView(t *model.MessageTemplate) *TemplateView {
	view := &TemplateView{
		ID:      t.PublicID,
		Name:    t.Name,
		Type:    string(t.Type),
		Subject: t.Subject,
		Body:    t.Body,
	}

	for _, a := range t.Attachments {
		view.Attachments = append(view.Attachments, AttachmentView{
			FileName:     a.FileName,
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
		})
	}

	return view
}

func newListView(l *model.ContactList) ListView {
	view := ListView{
		ID:   l.PublicID,
		Name: l.Name,
		Type: string(l.Type),
	}

	for _, contact := range l.Contacts {
		view.Contacts = append(view.Contacts, ContactView{
			Name:       contact.Name,
			Identifier: contact.Identifier,
		})
	}

	return view
}

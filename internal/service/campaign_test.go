package service

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"Outreachly/internal/model"
	"Outreachly/internal/model/dto"
	pkgerrors "Outreachly/pkg/errors"
	"Outreachly/pkg/logger"
	"Outreachly/pkg/snowflake"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	if err := snowflake.Init(1, 1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// ---------- fakes ----------

type fakeCampaignStore struct {
	campaign *model.Campaign
	template *model.MessageTemplate
	lists    []model.ContactList
	owned    bool

	heatmapRows []model.Campaign

	claimResult  bool
	cancelResult bool

	created   *model.Campaign
	deletedID int64
	claims    []int64
}

func (s *fakeCampaignStore) FindAll(ctx context.Context, orgID int64) ([]model.Campaign, error) {
	if s.campaign == nil {
		return nil, nil
	}
	return []model.Campaign{*s.campaign}, nil
}

func (s *fakeCampaignStore) FindOne(ctx context.Context, orgID, publicID int64) (*model.Campaign, error) {
	if s.campaign == nil || s.campaign.PublicID != publicID {
		return nil, pkgerrors.CampaignNotFound
	}
	return s.campaign, nil
}

func (s *fakeCampaignStore) Create(ctx context.Context, campaign *model.Campaign) error {
	s.created = campaign
	return nil
}

func (s *fakeCampaignStore) UpdateTags(ctx context.Context, orgID, publicID int64, tags model.StringList) error {
	if s.campaign == nil || s.campaign.PublicID != publicID {
		return pkgerrors.CampaignNotFound
	}
	s.campaign.Tags = tags
	return nil
}

func (s *fakeCampaignStore) Delete(ctx context.Context, campaignID int64) error {
	s.deletedID = campaignID
	return nil
}

func (s *fakeCampaignStore) ClaimForSending(ctx context.Context, campaignID int64) (bool, error) {
	s.claims = append(s.claims, campaignID)
	return s.claimResult, nil
}

func (s *fakeCampaignStore) Cancel(ctx context.Context, campaignID int64) (bool, error) {
	return s.cancelResult, nil
}

func (s *fakeCampaignStore) VerifyAccountOwnership(ctx context.Context, orgID int64, accountID string) (bool, error) {
	return s.owned, nil
}

func (s *fakeCampaignStore) FindTemplate(ctx context.Context, orgID, publicID int64) (*model.MessageTemplate, error) {
	if s.template == nil {
		return nil, pkgerrors.TemplateNotFound
	}
	return s.template, nil
}

func (s *fakeCampaignStore) FindLists(ctx context.Context, orgID int64, publicIDs []int64) ([]model.ContactList, error) {
	if s.lists == nil {
		return nil, pkgerrors.ListNotFound
	}
	return s.lists, nil
}

func (s *fakeCampaignStore) HeatmapRows(ctx context.Context, orgID int64) ([]model.Campaign, error) {
	return s.heatmapRows, nil
}

type fakeLauncher struct {
	launched []int64
}

func (l *fakeLauncher) Launch(campaignID, orgID int64) {
	l.launched = append(l.launched, campaignID)
}

type noopHeatmapCache struct {
	stored dto.Heatmap
}

func (c *noopHeatmapCache) Get(ctx context.Context, orgID int64) (dto.Heatmap, bool, error) {
	return nil, false, nil
}

func (c *noopHeatmapCache) Set(ctx context.Context, orgID int64, heatmap dto.Heatmap) error {
	c.stored = heatmap
	return nil
}

func newTestService(store *fakeCampaignStore) (*CampaignService, *fakeLauncher) {
	launcher := &fakeLauncher{}
	return NewCampaignService(store, launcher, &noopHeatmapCache{}), launcher
}

func storedCampaign(status model.CampaignStatus) *model.Campaign {
	c := &model.Campaign{
		PublicID:  100,
		OrgID:     7,
		Name:      "q3 outreach",
		AccountID: "acc_1",
		Status:    status,
		Total:     5,
	}
	c.ID = 1
	return c
}

// ---------- create ----------

func emailTemplate() *model.MessageTemplate {
	t := &model.MessageTemplate{
		PublicID: 200,
		OrgID:    7,
		Type:     model.ChannelEmail,
		Subject:  "Hi",
		Body:     "Body",
	}
	t.ID = 2
	return t
}

func TestCreateCampaignRejectsEmptyLists(t *testing.T) {
	svc, _ := newTestService(&fakeCampaignStore{owned: true})

	_, err := svc.CreateCampaign(context.Background(), 7, "u1", dto.CreateCampaignRequest{
		Name:      "x",
		MessageID: 200,
		AccountID: "acc_1",
	})
	if err != pkgerrors.CampaignListsEmpty {
		t.Errorf("err = %v, want CampaignListsEmpty", err)
	}
}

func TestCreateCampaignRejectsForeignAccount(t *testing.T) {
	svc, _ := newTestService(&fakeCampaignStore{owned: false})

	_, err := svc.CreateCampaign(context.Background(), 7, "u1", dto.CreateCampaignRequest{
		Name:      "x",
		MessageID: 200,
		ListIDs:   []int64{300},
		AccountID: "acc_other",
	})
	if err != pkgerrors.AccountNotConnected {
		t.Errorf("err = %v, want AccountNotConnected", err)
	}
}

func TestCreateCampaignRejectsChannelMismatch(t *testing.T) {
	store := &fakeCampaignStore{
		owned:    true,
		template: emailTemplate(),
		lists: []model.ContactList{
			{Type: model.ChannelWhatsApp, Contacts: []model.Contact{{Identifier: "chat_1"}}},
		},
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateCampaign(context.Background(), 7, "u1", dto.CreateCampaignRequest{
		Name:      "x",
		MessageID: 200,
		ListIDs:   []int64{300},
		AccountID: "acc_1",
	})
	if err != pkgerrors.ListChannelMismatch {
		t.Errorf("err = %v, want ListChannelMismatch", err)
	}
	if store.created != nil {
		t.Error("campaign must not be created on channel mismatch")
	}
}

func TestCreateCampaignCountsContactsAndSetsStatus(t *testing.T) {
	store := &fakeCampaignStore{
		owned:    true,
		template: emailTemplate(),
		lists: []model.ContactList{
			{Type: model.ChannelEmail, Contacts: []model.Contact{{Identifier: "a"}, {Identifier: "b"}}},
			{Type: model.ChannelEmail, Contacts: []model.Contact{{Identifier: "c"}}},
		},
	}
	svc, _ := newTestService(store)

	view, err := svc.CreateCampaign(context.Background(), 7, "u1", dto.CreateCampaignRequest{
		Name:      "draft one",
		MessageID: 200,
		ListIDs:   []int64{300, 301},
		AccountID: "acc_1",
	})
	if err != nil {
		t.Fatalf("CreateCampaign returned error: %v", err)
	}

	if store.created.Total != 3 {
		t.Errorf("total = %d, want 3", store.created.Total)
	}
	if store.created.Status != model.CampaignStatusDraft {
		t.Errorf("status = %s, want DRAFT", store.created.Status)
	}
	if store.created.PublicID == 0 {
		t.Error("public ID must be assigned")
	}
	if view.Status != "DRAFT" {
		t.Errorf("view status = %s", view.Status)
	}

	// 带 scheduled_at 创建直接进入 SCHEDULED
	at := time.Now().Add(time.Hour)
	_, err = svc.CreateCampaign(context.Background(), 7, "u1", dto.CreateCampaignRequest{
		Name:        "scheduled one",
		MessageID:   200,
		ListIDs:     []int64{300},
		AccountID:   "acc_1",
		ScheduledAt: &at,
	})
	if err != nil {
		t.Fatalf("CreateCampaign returned error: %v", err)
	}
	if store.created.Status != model.CampaignStatusScheduled {
		t.Errorf("status = %s, want SCHEDULED", store.created.Status)
	}
}

// ---------- send ----------

func TestSendCampaignLaunchesWhenClaimed(t *testing.T) {
	store := &fakeCampaignStore{campaign: storedCampaign(model.CampaignStatusDraft), claimResult: true}
	svc, launcher := newTestService(store)

	resp, err := svc.SendCampaign(context.Background(), 7, 100)
	if err != nil {
		t.Fatalf("SendCampaign returned error: %v", err)
	}

	if resp.Status != "SENDING" || resp.Total != 5 {
		t.Errorf("resp = %+v", resp)
	}
	if len(launcher.launched) != 1 || launcher.launched[0] != 1 {
		t.Errorf("launched = %v, want internal ID 1", launcher.launched)
	}
}

func TestSendCampaignConflictsWhileSending(t *testing.T) {
	store := &fakeCampaignStore{campaign: storedCampaign(model.CampaignStatusSending), claimResult: false}
	svc, launcher := newTestService(store)

	_, err := svc.SendCampaign(context.Background(), 7, 100)
	if err != pkgerrors.CampaignAlreadySending {
		t.Errorf("err = %v, want CampaignAlreadySending", err)
	}
	if len(launcher.launched) != 0 {
		t.Error("runner must not launch when claim fails")
	}
}

func TestSendCampaignRejectsFinishedCampaign(t *testing.T) {
	for _, status := range []model.CampaignStatus{model.CampaignStatusSent, model.CampaignStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			store := &fakeCampaignStore{campaign: storedCampaign(status), claimResult: true}
			svc, launcher := newTestService(store)

			_, err := svc.SendCampaign(context.Background(), 7, 100)
			if err != pkgerrors.CampaignAlreadySending {
				t.Errorf("err = %v, want CampaignAlreadySending", err)
			}
			if len(store.claims) != 0 {
				t.Error("terminal campaign must be rejected before the claim")
			}
			if len(launcher.launched) != 0 {
				t.Error("runner must not launch for a finished campaign")
			}
		})
	}
}

func TestSendCampaignNotFound(t *testing.T) {
	svc, _ := newTestService(&fakeCampaignStore{})

	_, err := svc.SendCampaign(context.Background(), 7, 999)
	if err != pkgerrors.CampaignNotFound {
		t.Errorf("err = %v, want CampaignNotFound", err)
	}
}

// ---------- cancel ----------

func TestCancelCampaign(t *testing.T) {
	cases := []struct {
		name        string
		status      model.CampaignStatus
		cancellable bool
		wantErr     error
	}{
		{"scheduled", model.CampaignStatusScheduled, true, nil},
		{"draft", model.CampaignStatusDraft, false, pkgerrors.CampaignNotCancellable},
		{"sending", model.CampaignStatusSending, false, pkgerrors.CampaignNotCancellable},
		{"sent", model.CampaignStatusSent, false, pkgerrors.CampaignNotCancellable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeCampaignStore{
				campaign:     storedCampaign(tc.status),
				cancelResult: tc.cancellable,
			}
			svc, _ := newTestService(store)

			resp, err := svc.CancelCampaign(context.Background(), 7, 100)
			if err != tc.wantErr {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && resp.Status != "DRAFT" {
				t.Errorf("resp.Status = %s, want DRAFT", resp.Status)
			}
		})
	}
}

// ---------- delete ----------

func TestDeleteCampaignRejectsSending(t *testing.T) {
	store := &fakeCampaignStore{campaign: storedCampaign(model.CampaignStatusSending)}
	svc, _ := newTestService(store)

	err := svc.DeleteCampaign(context.Background(), 7, 100)
	if err != pkgerrors.CampaignDeleteSending {
		t.Errorf("err = %v, want CampaignDeleteSending", err)
	}
	if store.deletedID != 0 {
		t.Error("campaign must not be deleted while sending")
	}
}

func TestDeleteCampaign(t *testing.T) {
	store := &fakeCampaignStore{campaign: storedCampaign(model.CampaignStatusDraft)}
	svc, _ := newTestService(store)

	if err := svc.DeleteCampaign(context.Background(), 7, 100); err != nil {
		t.Fatalf("DeleteCampaign returned error: %v", err)
	}
	if store.deletedID != 1 {
		t.Errorf("deleted internal ID = %d, want 1", store.deletedID)
	}
}

// ---------- heatmap ----------

func TestScheduleHeatmapBucketsByDate(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)

	scheduled := model.Campaign{Name: "a", Status: model.CampaignStatusScheduled, Total: 10, ScheduledAt: &day1}
	scheduled.CreatedAt = day2 // scheduled_at 优先于 created_at

	draft := model.Campaign{Name: "b", Status: model.CampaignStatusDraft, Total: 3}
	draft.CreatedAt = day2

	sent := model.Campaign{Name: "c", Status: model.CampaignStatusSent, Total: 8}
	sent.CreatedAt = day2

	store := &fakeCampaignStore{heatmapRows: []model.Campaign{scheduled, draft, sent}}
	cacheStub := &noopHeatmapCache{}
	svc := NewCampaignService(store, &fakeLauncher{}, cacheStub)

	heatmap, err := svc.ScheduleHeatmap(context.Background(), 7)
	if err != nil {
		t.Fatalf("ScheduleHeatmap returned error: %v", err)
	}

	if heatmap["2026-03-01"].Count != 1 {
		t.Errorf("2026-03-01 count = %d, want 1", heatmap["2026-03-01"].Count)
	}
	entry := heatmap["2026-03-02"]
	if entry.Count != 2 || len(entry.Campaigns) != 2 {
		t.Errorf("2026-03-02 entry = %+v, want 2 campaigns", entry)
	}
	if entry.Campaigns[0].Name != "b" || entry.Campaigns[0].Total != 3 {
		t.Errorf("first campaign in bucket = %+v", entry.Campaigns[0])
	}

	if cacheStub.stored == nil {
		t.Error("heatmap must be written to cache after rebuild")
	}
}

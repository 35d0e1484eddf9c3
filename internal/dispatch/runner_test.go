package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"Outreachly/internal/gateway"
	"Outreachly/internal/model"
	"Outreachly/internal/queue"
	"Outreachly/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

// ---------- fakes ----------

type progressUpdate struct {
	sent, failed int
}

type finalizeCall struct {
	status       model.CampaignStatus
	sent, failed int
}

type fakeStore struct {
	mu        sync.Mutex
	campaign  *model.Campaign
	signature string
	sigErr    error

	logs      []model.CampaignLog
	progress  []progressUpdate
	finalized []finalizeCall

	finalizeCh chan finalizeCall
}

func newFakeStore(c *model.Campaign) *fakeStore {
	return &fakeStore{
		campaign:   c,
		finalizeCh: make(chan finalizeCall, 4),
	}
}

func (s *fakeStore) FindForDispatch(ctx context.Context, campaignID int64) (*model.Campaign, error) {
	return s.campaign, nil
}

func (s *fakeStore) AccountSignature(ctx context.Context, orgID int64, accountID string) (string, error) {
	return s.signature, s.sigErr
}

func (s *fakeStore) AppendLog(ctx context.Context, log *model.CampaignLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *fakeStore) UpdateProgress(ctx context.Context, campaignID int64, sent, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, progressUpdate{sent, failed})
	return nil
}

func (s *fakeStore) Finalize(ctx context.Context, campaignID int64, status model.CampaignStatus, sent, failed int) error {
	call := finalizeCall{status: status, sent: sent, failed: failed}
	s.mu.Lock()
	s.finalized = append(s.finalized, call)
	s.mu.Unlock()
	s.finalizeCh <- call
	return nil
}

type sentEmail struct {
	params gateway.SendEmailParams
}

type sentChat struct {
	chatID string
	text   string
}

type fakeGateway struct {
	mu     sync.Mutex
	emails []sentEmail
	chats  []sentChat

	// failFor 按 identifier 定义失败
	failFor map[string]error
	// panicFor 按 identifier 触发 panic
	panicFor map[string]bool
}

func (g *fakeGateway) SendEmail(ctx context.Context, params gateway.SendEmailParams) error {
	id := params.To[0].Identifier
	if g.panicFor[id] {
		panic("gateway exploded")
	}

	g.mu.Lock()
	g.emails = append(g.emails, sentEmail{params})
	g.mu.Unlock()

	return g.failFor[id]
}

func (g *fakeGateway) SendChatMessage(ctx context.Context, chatID, text string, attachmentPaths []string) error {
	if g.panicFor[chatID] {
		panic("gateway exploded")
	}

	g.mu.Lock()
	g.chats = append(g.chats, sentChat{chatID, text})
	g.mu.Unlock()

	return g.failFor[chatID]
}

type fakeEvents struct {
	mu       sync.Mutex
	started  []queue.CampaignStartedMessage
	finished []queue.CampaignFinishedMessage
}

func (e *fakeEvents) CampaignStarted(msg queue.CampaignStartedMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, msg)
	return nil
}

func (e *fakeEvents) CampaignFinished(msg queue.CampaignFinishedMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, msg)
	return nil
}

// ---------- helpers ----------

func emailCampaign(contacts ...model.Contact) *model.Campaign {
	c := &model.Campaign{
		OrgID:     7,
		Name:      "launch",
		AccountID: "acc_1",
		Status:    model.CampaignStatusSending,
		Total:     len(contacts),
		Message: &model.MessageTemplate{
			Type:    model.ChannelEmail,
			Subject: "Hi",
			Body:    "Body",
		},
		Lists: []model.ContactList{
			{Type: model.ChannelEmail, Contacts: contacts},
		},
	}
	c.ID = 42
	return c
}

func newTestRunner(store Store, gw Gateway, events Events) (*Runner, *[]time.Duration) {
	r := NewRunnerWith(store, gw, events, time.Second, 4*time.Second)

	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	return r, &slept
}

// ---------- tests ----------

func TestRunPacesEveryContactExceptFirst(t *testing.T) {
	contacts := []model.Contact{
		{Name: "a", Identifier: "a@x.com"},
		{Name: "b", Identifier: "b@x.com"},
		{Name: "c", Identifier: "c@x.com"},
	}
	store := newFakeStore(emailCampaign(contacts...))
	gw := &fakeGateway{}
	r, slept := newTestRunner(store, gw, &fakeEvents{})

	r.run(context.Background(), 42, 7)

	if len(*slept) != len(contacts)-1 {
		t.Fatalf("slept %d times, want %d", len(*slept), len(contacts)-1)
	}
	for _, d := range *slept {
		if d < time.Second || d >= 5*time.Second {
			t.Errorf("pace delay %v outside [1s, 5s)", d)
		}
	}
	if len(gw.emails) != 3 {
		t.Errorf("sent %d emails, want 3", len(gw.emails))
	}
}

func TestRunAppendsSignatureToEmailOnly(t *testing.T) {
	campaign := &model.Campaign{
		OrgID:     7,
		AccountID: "acc_1",
		Total:     2,
		Message: &model.MessageTemplate{
			Type:    model.ChannelWhatsApp,
			Body:    "Hello there",
			Subject: "",
		},
		Lists: []model.ContactList{
			{Type: model.ChannelEmail, Contacts: []model.Contact{{Name: "a", Identifier: "a@x.com"}}},
			{Type: model.ChannelWhatsApp, Contacts: []model.Contact{{Name: "b", Identifier: "chat_b"}}},
		},
	}
	campaign.ID = 42

	store := newFakeStore(campaign)
	store.signature = "Alice"
	gw := &fakeGateway{}
	r, _ := newTestRunner(store, gw, &fakeEvents{})

	r.run(context.Background(), 42, 7)

	if len(gw.emails) != 1 || len(gw.chats) != 1 {
		t.Fatalf("emails=%d chats=%d, want 1/1", len(gw.emails), len(gw.chats))
	}

	wantEmail := "Hello there<br/><br/>--<br/>Alice"
	if gw.emails[0].params.Body != wantEmail {
		t.Errorf("email body = %q, want %q", gw.emails[0].params.Body, wantEmail)
	}
	if gw.chats[0].text != "Hello there" {
		t.Errorf("chat text = %q, signature must not leak into chat", gw.chats[0].text)
	}
}

func TestRunWithoutSignature(t *testing.T) {
	store := newFakeStore(emailCampaign(model.Contact{Name: "a", Identifier: "a@x.com"}))
	gw := &fakeGateway{}
	r, _ := newTestRunner(store, gw, &fakeEvents{})

	r.run(context.Background(), 42, 7)

	if gw.emails[0].params.Body != "Body" {
		t.Errorf("email body = %q, want plain body", gw.emails[0].params.Body)
	}
}

func TestRunSignatureLookupFailureFallsBack(t *testing.T) {
	store := newFakeStore(emailCampaign(model.Contact{Name: "a", Identifier: "a@x.com"}))
	store.sigErr = errors.New("db gone")
	gw := &fakeGateway{}
	r, _ := newTestRunner(store, gw, &fakeEvents{})

	r.run(context.Background(), 42, 7)

	if len(gw.emails) != 1 {
		t.Fatalf("sent %d emails, want 1", len(gw.emails))
	}
	if gw.emails[0].params.Body != "Body" {
		t.Errorf("email body = %q, want plain body", gw.emails[0].params.Body)
	}
}

func TestRunPersistsPerContact(t *testing.T) {
	contacts := []model.Contact{
		{Name: "a", Identifier: "a@x.com"},
		{Name: "b", Identifier: "b@x.com"},
		{Name: "c", Identifier: "c@x.com"},
	}
	store := newFakeStore(emailCampaign(contacts...))
	gw := &fakeGateway{failFor: map[string]error{"b@x.com": errors.New("bounce")}}
	r, _ := newTestRunner(store, gw, &fakeEvents{})

	r.run(context.Background(), 42, 7)

	if len(store.logs) != 3 {
		t.Fatalf("logged %d deliveries, want 3", len(store.logs))
	}
	if store.logs[1].Status != model.DeliveryStatusFailed {
		t.Errorf("second log status = %s, want FAILED", store.logs[1].Status)
	}
	if store.logs[1].Error == nil || *store.logs[1].Error != "bounce" {
		t.Errorf("failed log must carry the gateway error")
	}
	if store.logs[0].Status != model.DeliveryStatusSent || store.logs[2].Status != model.DeliveryStatusSent {
		t.Errorf("sent logs have wrong status")
	}

	want := []progressUpdate{{1, 0}, {1, 1}, {2, 1}}
	if len(store.progress) != len(want) {
		t.Fatalf("progress updated %d times, want %d", len(store.progress), len(want))
	}
	for i, p := range store.progress {
		if p != want[i] {
			t.Errorf("progress[%d] = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestRunFinalStatus(t *testing.T) {
	cases := []struct {
		name     string
		failures []string
		contacts []model.Contact
		want     finalizeCall
	}{
		{
			name:     "all sent",
			contacts: []model.Contact{{Identifier: "a@x.com"}, {Identifier: "b@x.com"}},
			want:     finalizeCall{status: model.CampaignStatusSent, sent: 2, failed: 0},
		},
		{
			name:     "partial failure still SENT",
			contacts: []model.Contact{{Identifier: "a@x.com"}, {Identifier: "b@x.com"}},
			failures: []string{"b@x.com"},
			want:     finalizeCall{status: model.CampaignStatusSent, sent: 1, failed: 1},
		},
		{
			name:     "all failed",
			contacts: []model.Contact{{Identifier: "a@x.com"}, {Identifier: "b@x.com"}},
			failures: []string{"a@x.com", "b@x.com"},
			want:     finalizeCall{status: model.CampaignStatusFailed, sent: 0, failed: 2},
		},
		{
			name:     "no contacts",
			contacts: nil,
			want:     finalizeCall{status: model.CampaignStatusSent, sent: 0, failed: 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(emailCampaign(tc.contacts...))
			failFor := map[string]error{}
			for _, id := range tc.failures {
				failFor[id] = fmt.Errorf("rejected")
			}
			gw := &fakeGateway{failFor: failFor}
			r, _ := newTestRunner(store, gw, &fakeEvents{})

			r.run(context.Background(), 42, 7)

			if len(store.finalized) != 1 {
				t.Fatalf("finalized %d times, want 1", len(store.finalized))
			}
			// 终态和最终计数是同一次写入
			if store.finalized[0] != tc.want {
				t.Errorf("finalize = %+v, want %+v", store.finalized[0], tc.want)
			}
		})
	}
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	store := newFakeStore(emailCampaign(model.Contact{Identifier: "a@x.com"}))
	events := &fakeEvents{}
	r, _ := newTestRunner(store, &fakeGateway{}, events)

	r.run(context.Background(), 42, 7)

	if len(events.started) != 1 {
		t.Fatalf("started events = %d, want 1", len(events.started))
	}
	if events.started[0].CampaignID != 42 || events.started[0].OrgID != 7 {
		t.Errorf("started event = %+v", events.started[0])
	}
	if len(events.finished) != 1 {
		t.Fatalf("finished events = %d, want 1", len(events.finished))
	}
	fin := events.finished[0]
	if fin.Status != string(model.CampaignStatusSent) || fin.Sent != 1 || fin.Failed != 0 {
		t.Errorf("finished event = %+v", fin)
	}
}

func TestLaunchRecoversFromPanic(t *testing.T) {
	store := newFakeStore(emailCampaign(model.Contact{Name: "a", Identifier: "a@x.com"}))
	gw := &fakeGateway{panicFor: map[string]bool{"a@x.com": true}}
	r, _ := newTestRunner(store, gw, &fakeEvents{})

	r.Launch(42, 7)

	select {
	case call := <-store.finalizeCh:
		if call.status != model.CampaignStatusFailed {
			t.Errorf("panicked campaign finalized as %s, want FAILED", call.status)
		}
		if call.sent != 0 || call.failed != 0 {
			t.Errorf("panic before first delivery must keep counters at 0, got %+v", call)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("campaign never finalized after panic")
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	contacts := []model.Contact{
		{Identifier: "a@x.com"},
		{Identifier: "b@x.com"},
	}
	store := newFakeStore(emailCampaign(contacts...))
	gw := &fakeGateway{}
	r := NewRunnerWith(store, gw, &fakeEvents{}, time.Second, 0)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	r.run(context.Background(), 42, 7)

	// 第二个联系人前被打断，不应收敛到终态
	if len(gw.emails) != 1 {
		t.Errorf("sent %d emails, want 1", len(gw.emails))
	}
	if len(store.finalized) != 0 {
		t.Errorf("interrupted run must not finalize, got %v", store.finalized)
	}
}

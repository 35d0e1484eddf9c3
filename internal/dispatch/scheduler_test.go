package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Outreachly/internal/model"
)

type fakeSchedulerStore struct {
	mu       sync.Mutex
	due      []model.Campaign
	dueErr   error
	claimed  map[int64]bool // campaign ID -> 是否允许抢占
	claimLog []int64
}

func (s *fakeSchedulerStore) DueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	return s.due, s.dueErr
}

func (s *fakeSchedulerStore) ClaimForSending(ctx context.Context, campaignID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimLog = append(s.claimLog, campaignID)
	return s.claimed[campaignID], nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []int64
	orgs     []int64
}

func (l *fakeLauncher) Launch(campaignID, orgID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, campaignID)
	l.orgs = append(l.orgs, orgID)
}

func dueCampaign(id, orgID int64) model.Campaign {
	c := model.Campaign{
		OrgID:  orgID,
		Status: model.CampaignStatusScheduled,
	}
	c.ID = id
	return c
}

func TestPollClaimsAndLaunchesDueCampaigns(t *testing.T) {
	store := &fakeSchedulerStore{
		due:     []model.Campaign{dueCampaign(1, 10), dueCampaign(2, 20)},
		claimed: map[int64]bool{1: true, 2: true},
	}
	launcher := &fakeLauncher{}
	s := NewSchedulerWith(store, launcher, time.Minute)

	s.Poll(context.Background())

	if len(launcher.launched) != 2 {
		t.Fatalf("launched %d campaigns, want 2", len(launcher.launched))
	}
	if launcher.launched[0] != 1 || launcher.orgs[0] != 10 {
		t.Errorf("first launch = campaign %d org %d", launcher.launched[0], launcher.orgs[0])
	}
}

func TestPollSkipsCampaignsClaimedElsewhere(t *testing.T) {
	// 活动 2 已被手动触发抢走，条件更新返回 0 行
	store := &fakeSchedulerStore{
		due:     []model.Campaign{dueCampaign(1, 10), dueCampaign(2, 10)},
		claimed: map[int64]bool{1: true, 2: false},
	}
	launcher := &fakeLauncher{}
	s := NewSchedulerWith(store, launcher, time.Minute)

	s.Poll(context.Background())

	if len(store.claimLog) != 2 {
		t.Fatalf("attempted %d claims, want 2", len(store.claimLog))
	}
	if len(launcher.launched) != 1 || launcher.launched[0] != 1 {
		t.Errorf("launched = %v, want only campaign 1", launcher.launched)
	}
}

func TestPollSurvivesQueryError(t *testing.T) {
	store := &fakeSchedulerStore{dueErr: errors.New("db down")}
	launcher := &fakeLauncher{}
	s := NewSchedulerWith(store, launcher, time.Minute)

	s.Poll(context.Background())

	if len(launcher.launched) != 0 {
		t.Errorf("launched %d campaigns on query error", len(launcher.launched))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &fakeSchedulerStore{claimed: map[int64]bool{}}
	s := NewSchedulerWith(store, &fakeLauncher{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}

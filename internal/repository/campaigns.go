package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"Outreachly/internal/model"
	pkgerrors "Outreachly/pkg/errors"
	"Outreachly/storage/database"
)

var (
	campaignStore *CampaignStore
	campaignOnce  sync.Once
)

// Campaigns 返回共享的 store 实例
func Campaigns() *CampaignStore {
	campaignOnce.Do(func() {
		campaignStore = NewCampaignStore(database.DB())
	})

	return campaignStore
}

type CampaignStore struct {
	db *gorm.DB
}

func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

// FindAll 按组织列出活动，列表视图不带联系人和日志
func (s *CampaignStore) FindAll(ctx context.Context, orgID int64) ([]model.Campaign, error) {
	var campaigns []model.Campaign

	err := s.db.WithContext(ctx).
		Preload("Message").
		Preload("Lists").
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}

	return campaigns, nil
}

// FindOne 详情视图，带模板附件、名单联系人和投递日志
func (s *CampaignStore) FindOne(ctx context.Context, orgID, publicID int64) (*model.Campaign, error) {
	var campaign model.Campaign

	err := s.db.WithContext(ctx).
		Preload("Message.Attachments").
		Preload("Lists.Contacts").
		Preload("Logs").
		Where("org_id = ? AND public_id = ?", orgID, publicID).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.CampaignNotFound
		}
		return nil, fmt.Errorf("failed to query campaign: %w", err)
	}

	return &campaign, nil
}

// FindForDispatch 按内部 ID 加载 Runner 需要的完整关联
func (s *CampaignStore) FindForDispatch(ctx context.Context, campaignID int64) (*model.Campaign, error) {
	var campaign model.Campaign

	err := s.db.WithContext(ctx).
		Preload("Message.Attachments").
		Preload("Lists.Contacts").
		First(&campaign, campaignID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.CampaignNotFound
		}
		return nil, fmt.Errorf("failed to load campaign for dispatch: %w", err)
	}

	return &campaign, nil
}

func (s *CampaignStore) Create(ctx context.Context, campaign *model.Campaign) error {
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

func (s *CampaignStore) UpdateTags(ctx context.Context, orgID, publicID int64, tags model.StringList) error {
	res := s.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("org_id = ? AND public_id = ?", orgID, publicID).
		Update("tags", tags)
	if res.Error != nil {
		return fmt.Errorf("failed to update campaign tags: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.CampaignNotFound
	}

	return nil
}

// Delete 软删除，调用方负责先检查状态
func (s *CampaignStore) Delete(ctx context.Context, campaignID int64) error {
	if err := s.db.WithContext(ctx).Delete(&model.Campaign{}, campaignID).Error; err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	return nil
}

// ClaimForSending 原子抢占活动进入 SENDING
// 条件更新保证并发触发时只有一个调用方拿到活动，计数器同时清零
func (s *CampaignStore) ClaimForSending(ctx context.Context, campaignID int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND status IN ?", campaignID, []model.CampaignStatus{
			model.CampaignStatusDraft,
			model.CampaignStatusScheduled,
		}).
		Updates(map[string]interface{}{
			"status": model.CampaignStatusSending,
			"sent":   0,
			"failed": 0,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim campaign: %w", res.Error)
	}

	return res.RowsAffected == 1, nil
}

// Cancel 仅 SCHEDULED 可取消，回到 DRAFT 并清除定时
func (s *CampaignStore) Cancel(ctx context.Context, campaignID int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND status = ?", campaignID, model.CampaignStatusScheduled).
		Updates(map[string]interface{}{
			"status":       model.CampaignStatusDraft,
			"scheduled_at": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel campaign: %w", res.Error)
	}

	return res.RowsAffected == 1, nil
}

// UpdateProgress 每投递完一个联系人即持久化计数，崩溃后计数不丢
func (s *CampaignStore) UpdateProgress(ctx context.Context, campaignID int64, sent, failed int) error {
	err := s.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]interface{}{
			"sent":   sent,
			"failed": failed,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign progress: %w", err)
	}

	return nil
}

// Finalize 终态和最终计数一条 UPDATE 落库
func (s *CampaignStore) Finalize(ctx context.Context, campaignID int64, status model.CampaignStatus, sent, failed int) error {
	err := s.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]interface{}{
			"status": status,
			"sent":   sent,
			"failed": failed,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize campaign: %w", err)
	}

	return nil
}

func (s *CampaignStore) AppendLog(ctx context.Context, log *model.CampaignLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to append campaign log: %w", err)
	}

	return nil
}

// DueScheduled 查询到期的定时活动，调度器轮询用
func (s *CampaignStore) DueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	var campaigns []model.Campaign

	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", model.CampaignStatusScheduled, now).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due campaigns: %w", err)
	}

	return campaigns, nil
}

// AccountSignature 读取组织为该账号配置的签名，未配置返回空串
func (s *CampaignStore) AccountSignature(ctx context.Context, orgID int64, accountID string) (string, error) {
	var org model.Organization

	err := s.db.WithContext(ctx).First(&org, orgID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query organization: %w", err)
	}

	if org.AccountSignatures == nil {
		return "", nil
	}

	sig, ok := org.AccountSignatures[accountID].(string)
	if !ok {
		return "", nil
	}

	return sig, nil
}

// VerifyAccountOwnership 检查网关账号是否属于该组织
func (s *CampaignStore) VerifyAccountOwnership(ctx context.Context, orgID int64, accountID string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&model.ConnectedAccount{}).
		Where("org_id = ? AND account_id = ?", orgID, accountID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to verify account ownership: %w", err)
	}

	return count > 0, nil
}

func (s *CampaignStore) FindTemplate(ctx context.Context, orgID, publicID int64) (*model.MessageTemplate, error) {
	var tpl model.MessageTemplate

	err := s.db.WithContext(ctx).
		Where("org_id = ? AND public_id = ?", orgID, publicID).
		First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.TemplateNotFound
		}
		return nil, fmt.Errorf("failed to query template: %w", err)
	}

	return &tpl, nil
}

// FindLists 按 public_id 批量查名单，缺一个即视为 not found
func (s *CampaignStore) FindLists(ctx context.Context, orgID int64, publicIDs []int64) ([]model.ContactList, error) {
	var lists []model.ContactList

	err := s.db.WithContext(ctx).
		Preload("Contacts").
		Where("org_id = ? AND public_id IN ?", orgID, publicIDs).
		Find(&lists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query contact lists: %w", err)
	}

	if len(lists) != len(publicIDs) {
		return nil, pkgerrors.ListNotFound
	}

	return lists, nil
}

// HeatmapRows 热力图只需要少量字段，避免拖出关联
func (s *CampaignStore) HeatmapRows(ctx context.Context, orgID int64) ([]model.Campaign, error) {
	var campaigns []model.Campaign

	err := s.db.WithContext(ctx).
		Select("id", "name", "status", "total", "scheduled_at", "created_at").
		Where("org_id = ?", orgID).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query heatmap rows: %w", err)
	}

	return campaigns, nil
}

package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"PinSocial/internal/model"
)

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

type OutboxRepository struct {
	DB *gorm.DB
	// 超过该次数的失败事件不再投递，留给人工处理
	MaxRetry int
}

func NewOutboxRepository(db *gorm.DB, maxRetry int) *OutboxRepository {
	return &OutboxRepository{DB: db, MaxRetry: maxRetry}
}

// List 按 id 顺序取待投递和可重试的事件
func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.SocialOutbox, error) {
	var list []model.SocialOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", OutboxPending, OutboxFailed, r.MaxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkFailed 投递失败，重试次数 +1
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id = ?", id).
		Updates(map[string]any{"status": OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// MarkSent 投递成功
func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.SocialOutbox{}).Where("id = ?", id).
		Update("status", OutboxSent).Error
}

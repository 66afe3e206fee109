package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"PinSocial/internal/model"
)

type CommentRepository struct {
	DB *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{DB: db}
}

func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *CommentRepository) FindByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var c model.Comment
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListByPin 按时间正序，id 作游标
func (r *CommentRepository) ListByPin(ctx context.Context, pinID, cursor uint64, limit int) ([]model.Comment, uint64, error) {
	limit = clampLimit(limit)
	q := r.DB.WithContext(ctx).Model(&model.Comment{}).Where("pin_id = ?", pinID)
	if cursor > 0 {
		q = q.Where("id > ?", cursor)
	}
	var rows []model.Comment
	if err := q.Order("id ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id uint64) error {
	res := r.DB.WithContext(ctx).Delete(&model.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

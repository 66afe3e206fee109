package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"PinSocial/internal/model"
)

type PinRepository struct {
	DB *gorm.DB
}

func NewPinRepository(db *gorm.DB) *PinRepository {
	return &PinRepository{DB: db}
}

// PinFilter 作者列表的查询条件
type PinFilter struct {
	// OnlyPublic 非作者且非粉丝时强制只看公开 pin
	OnlyPublic bool
	// IsPublic 调用方显式传入的 isPublic 过滤
	IsPublic *bool
	Cursor   uint64
	Limit    int
}

func (r *PinRepository) Create(ctx context.Context, pin *model.Pin) error {
	return r.DB.WithContext(ctx).Create(pin).Error
}

func (r *PinRepository) FindByID(ctx context.Context, id uint64) (*model.Pin, error) {
	var pin model.Pin
	if err := r.DB.WithContext(ctx).First(&pin, id).Error; err != nil {
		return nil, translate(err)
	}
	return &pin, nil
}

// Update 带作者校验的一步更新
func (r *PinRepository) Update(ctx context.Context, pinID, authorID uint64, fields map[string]any) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkAuthor(tx, pinID, authorID); err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.Model(&model.Pin{}).Where("id = ?", pinID).Updates(fields).Error
	})
}

// Delete 作者删除 pin，同时删掉点赞和评论
func (r *PinRepository) Delete(ctx context.Context, pinID, authorID uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkAuthor(tx, pinID, authorID); err != nil {
			return err
		}
		if err := tx.Where("pin_id = ?", pinID).Delete(&model.PinLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pin_id = ?", pinID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Pin{}, pinID).Error
	})
}

// ListByAuthor 按 id 倒序游标分页
func (r *PinRepository) ListByAuthor(ctx context.Context, authorID uint64, f PinFilter) ([]model.Pin, uint64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Pin{}).Where("author_id = ?", authorID)
	if f.OnlyPublic {
		q = q.Where("is_public = ?", true)
	}
	if f.IsPublic != nil {
		q = q.Where("is_public = ?", *f.IsPublic)
	}
	return pagePins(q, f.Cursor, f.Limit)
}

// ListFeed 公开 pin、自己的 pin 和关注作者的 pin；viewerID 为 0 时只有公开 pin
func (r *PinRepository) ListFeed(ctx context.Context, viewerID uint64, cursor uint64, limit int) ([]model.Pin, uint64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Pin{})
	if viewerID == 0 {
		q = q.Where("is_public = ?", true)
	} else {
		followings := r.DB.Model(&model.Follow{}).Select("following_id").Where("follower_id = ?", viewerID)
		q = q.Where("is_public = ? OR author_id = ? OR author_id IN (?)", true, viewerID, followings)
	}
	return pagePins(q, cursor, limit)
}

// SetImage 上传完成后回写图片地址
func (r *PinRepository) SetImage(ctx context.Context, pinID, authorID uint64, url string) error {
	return r.Update(ctx, pinID, authorID, map[string]any{"image_url": url})
}

func pagePins(q *gorm.DB, cursor uint64, limit int) ([]model.Pin, uint64, error) {
	limit = clampLimit(limit)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Pin
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

func checkAuthor(tx *gorm.DB, pinID, authorID uint64) error {
	var pin model.Pin
	if err := tx.Select("id", "author_id").First(&pin, pinID).Error; err != nil {
		return translate(err)
	}
	if pin.AuthorID != authorID {
		return ErrNotOwner
	}
	return nil
}

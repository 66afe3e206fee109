package sqlstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"PinSocial/internal/model"
)

type PinLikeRepository struct {
	DB *gorm.DB
}

func NewPinLikeRepository(db *gorm.DB) *PinLikeRepository {
	return &PinLikeRepository{DB: db}
}

// Like 幂等点赞，返回是否真的新增
func (r *PinLikeRepository) Like(ctx context.Context, userID, pinID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 唯一(user_id, pin_id)，冲突即已点过
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.PinLike{UserID: userID, PinID: pinID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return tx.Model(&model.Pin{}).
			Where("id = ?", pinID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	return changed, err
}

func (r *PinLikeRepository) Unlike(ctx context.Context, userID, pinID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND pin_id = ?", userID, pinID).Delete(&model.PinLike{})
		if res.Error != nil {
			return res.Error
		}
		// 未删除任何行 -> 幂等
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		return tx.Model(&model.Pin{}).
			Where("id = ?", pinID).
			UpdateColumn("like_count", clampedAdd("like_count", -1)).Error
	})
	return changed, err
}

// LikerIDs pin 的全部点赞用户，回填集合缓存用
func (r *PinLikeRepository) LikerIDs(ctx context.Context, pinID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).
		Model(&model.PinLike{}).
		Where("pin_id = ?", pinID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *PinLikeRepository) GetLikeCount(ctx context.Context, pinID uint64) (int64, error) {
	var p model.Pin
	if err := r.DB.WithContext(ctx).Select("id", "like_count").First(&p, pinID).Error; err != nil {
		return 0, translate(err)
	}
	return p.LikeCount, nil
}

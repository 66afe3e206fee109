package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"PinSocial/internal/model"
)

type FollowCountReconcilerRepo struct {
	DB *gorm.DB
}

func NewFollowCountReconcilerRepo(db *gorm.DB) *FollowCountReconcilerRepo {
	return &FollowCountReconcilerRepo{DB: db}
}

// Pair 对账用的计数快照
type Pair struct {
	ID             uint64
	FollowingCount int64
	FollowerCount  int64
}

// ReconcileList 按 id 递增批量取用户计数，返回本批最后一个 id
func (r *FollowCountReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]Pair, uint64, error) {
	var list []Pair
	if err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("id", "following_count", "follower_count").
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, lastID, err
	}
	if len(list) == 0 {
		return nil, lastID, nil
	}
	return list, list[len(list)-1].ID, nil
}

// RealFollowers follows 表里的真实粉丝数
func (r *FollowCountReconcilerRepo) RealFollowers(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("following_id = ?", userID).
		Count(&n).Error
	return n, err
}

// RealFollowings follows 表里的真实关注数
func (r *FollowCountReconcilerRepo) RealFollowings(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ?", userID).
		Count(&n).Error
	return n, err
}

func (r *FollowCountReconcilerRepo) SetFollowerCount(ctx context.Context, userID uint64, n int64) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("follower_count", n).Error
}

func (r *FollowCountReconcilerRepo) SetFollowingCount(ctx context.Context, userID uint64, n int64) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("following_count", n).Error
}

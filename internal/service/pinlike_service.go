package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PinSocial/internal/repository/redis"
	"PinSocial/internal/repository/sqlstore"
)

type PinLikeService struct {
	repo      *sqlstore.PinLikeRepository
	pins      *PinService
	likeCache *redis.LikeCache
	lock      *redis.DistLock
	log       *zap.Logger
}

func NewPinLikeService(repo *sqlstore.PinLikeRepository, pins *PinService, likeCache *redis.LikeCache,
	lock *redis.DistLock, log *zap.Logger) *PinLikeService {
	return &PinLikeService{repo: repo, pins: pins, likeCache: likeCache, lock: lock, log: log}
}

// Like 看得到的 pin 才能点赞；先写库再更新缓存
func (s *PinLikeService) Like(ctx context.Context, userID, pinID uint64) (bool, error) {
	if err := s.visible(ctx, userID, pinID); err != nil {
		return false, err
	}
	changed, err := s.repo.Like(ctx, userID, pinID)
	if err != nil {
		return false, fmt.Errorf("like pin: %w", err)
	}
	if !changed {
		// 幂等命中时，尽量惰性回填集合
		s.likeCache.WarmIsLiked(ctx, userID, pinID, true)
		return false, nil
	}
	if err := s.likeCache.AddLike(ctx, userID, pinID); err != nil {
		s.dropCount(ctx, pinID, err)
	}
	return true, nil
}

func (s *PinLikeService) Unlike(ctx context.Context, userID, pinID uint64) (bool, error) {
	if err := s.visible(ctx, userID, pinID); err != nil {
		return false, err
	}
	changed, err := s.repo.Unlike(ctx, userID, pinID)
	if err != nil {
		return false, fmt.Errorf("unlike pin: %w", err)
	}
	if !changed {
		s.likeCache.WarmIsLiked(ctx, userID, pinID, false)
		return false, nil
	}
	if err := s.likeCache.RemoveLike(ctx, userID, pinID); err != nil {
		s.dropCount(ctx, pinID, err)
	}
	return true, nil
}

func (s *PinLikeService) IsLiked(ctx context.Context, userID, pinID uint64) (bool, error) {
	if err := s.visible(ctx, userID, pinID); err != nil {
		return false, err
	}
	// 先查缓存集合（命中才用）
	if b, ok, err := s.likeCache.IsLikedCached(ctx, userID, pinID); err == nil && ok {
		return b, nil
	}
	// 未命中时用完整列表回填，版本先于回源读取
	ver, verErr := s.likeCache.LikeSetVersion(ctx, pinID)
	ids, err := s.repo.LikerIDs(ctx, pinID)
	if err != nil {
		return false, fmt.Errorf("is liked: %w", err)
	}
	if verErr == nil {
		if _, err := s.likeCache.FillLikeSet(ctx, pinID, ver, ids); err != nil {
			s.log.Warn("fill like set", zap.Uint64("pin_id", pinID), zap.Error(err))
		}
	}
	return slices.Contains(ids, userID), nil
}

// Count 缓存未命中时只让拿到锁的请求回源，其余短暂退避后再读缓存
func (s *PinLikeService) Count(ctx context.Context, viewer Viewer, pinID uint64) (int64, error) {
	pin, err := s.pins.GetPinByID(ctx, viewer, pinID)
	if err != nil {
		return 0, err
	}
	if pin == nil {
		return 0, ErrPinNotFound
	}
	if v, ok, err := s.likeCache.GetLikeCountCached(ctx, pinID); err == nil && ok {
		return v, nil
	}

	token := uuid.NewString()
	got, _ := s.lock.Acquire(ctx, pinID, token)
	if got {
		defer func() {
			if err := s.lock.Release(ctx, pinID, token); err != nil {
				s.log.Warn("release like lock", zap.Uint64("pin_id", pinID), zap.Error(err))
			}
		}()
		// 第二次检查
		if v, ok, err := s.likeCache.GetLikeCountCached(ctx, pinID); err == nil && ok {
			return v, nil
		}
		v, err := s.repo.GetLikeCount(ctx, pinID)
		if err != nil {
			return 0, s.countError(err)
		}
		_ = s.likeCache.SetLikeCount(ctx, pinID, v)
		return v, nil
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	if v, ok, err := s.likeCache.GetLikeCountCached(ctx, pinID); err == nil && ok {
		return v, nil
	}
	v, err := s.repo.GetLikeCount(ctx, pinID)
	if err != nil {
		return 0, s.countError(err)
	}
	return v, nil
}

func (s *PinLikeService) visible(ctx context.Context, userID, pinID uint64) error {
	pin, err := s.pins.GetPinByID(ctx, AsUser(userID), pinID)
	if err != nil {
		return err
	}
	if pin == nil {
		return ErrPinNotFound
	}
	return nil
}

// dropCount 缓存更新失败时删计数 key，交给读侧重建
func (s *PinLikeService) dropCount(ctx context.Context, pinID uint64, cause error) {
	s.log.Warn("like cache update failed", zap.Uint64("pin_id", pinID), zap.Error(cause))
	_ = s.likeCache.DeleteCount(ctx, pinID)
}

func (s *PinLikeService) countError(err error) error {
	if errors.Is(err, sqlstore.ErrNotFound) {
		return ErrPinNotFound
	}
	return fmt.Errorf("like count: %w", err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"PinSocial/internal/model"
	"PinSocial/internal/pkg"
	"PinSocial/internal/repository/redis"
	"PinSocial/internal/repository/sqlstore"
)

type Profile struct {
	UserSummary
	Bio            string          `json:"bio,omitempty"`
	FollowerCount  int64           `json:"followers_count"`
	FollowingCount int64           `json:"following_count"`
	CanView        bool            `json:"can_view"`
	Relation       *RelationStatus `json:"relation,omitempty"`
}

type Settings struct {
	IsPrivate *bool
	Bio       *string
}

type UserService struct {
	repo    *sqlstore.UserRepository
	tokens  *redis.TokenStore
	jwt     *pkg.TokenManager
	vis     *Visibility
	follows *FollowService
	likes   *redis.LikeCache
	log     *zap.Logger
}

func NewUserService(repo *sqlstore.UserRepository, tokens *redis.TokenStore, jwt *pkg.TokenManager,
	vis *Visibility, follows *FollowService, likes *redis.LikeCache, log *zap.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, jwt: jwt, vis: vis, follows: follows, likes: likes, log: log}
}

func (s *UserService) Register(ctx context.Context, username, password, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || len(password) < 6 {
		return nil, ErrInvalidArgument
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{Username: username, Password: string(hash), Email: email}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, sqlstore.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login 用户名或邮箱登录，access token 写入 redis，同一账号只保留一个会话
func (s *UserService) Login(ctx context.Context, login, password string) (*pkg.Pair, error) {
	user, err := s.repo.FindByLogin(ctx, login)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID)
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	return s.tokens.Delete(ctx, userID)
}

// Refresh 用 refresh token 换新的一对，并替换 redis 中的会话
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.tokens.Get(ctx, claims.UserID); err != nil {
		// 已登出或被挤下线
		return nil, ErrLoginRequired
	}
	return s.issue(ctx, claims.UserID)
}

// Authenticate 校验 access token 且必须是 redis 中当前会话，校验通过后续期
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (uint64, error) {
	claims, err := s.jwt.ParseAccess(accessToken)
	if err != nil {
		return 0, err
	}
	current, err := s.tokens.Get(ctx, claims.UserID)
	if errors.Is(err, redis.ErrTokenNotFound) {
		return 0, ErrLoginRequired
	}
	if err != nil {
		return 0, err
	}
	if current != accessToken {
		return 0, ErrSessionReplaced
	}
	if err := s.tokens.Extend(ctx, claims.UserID); err != nil {
		s.log.Warn("extend session", zap.Uint64("user_id", claims.UserID), zap.Error(err))
	}
	return claims.UserID, nil
}

// ChangePassword 登录态修改密码，成功后强制重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrInvalidArgument
	}
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.Logout(ctx, userID)
}

// UpdateSettings 修改私密开关和简介。已有的申请不受影响
func (s *UserService) UpdateSettings(ctx context.Context, userID uint64, in Settings) (*model.User, error) {
	fields := map[string]any{}
	if in.IsPrivate != nil {
		fields["is_private"] = *in.IsPrivate
	}
	if in.Bio != nil {
		if len(*in.Bio) > 280 {
			return nil, ErrInvalidArgument
		}
		fields["bio"] = *in.Bio
	}
	if err := s.repo.UpdateSettings(ctx, userID, fields); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update settings: %w", err)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return user, nil
}

// DeleteAccount 校验密码后级联删除，并清掉会话
func (s *UserService) DeleteAccount(ctx context.Context, userID uint64, password string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return ErrWrongPassword
	}
	fp, err := s.repo.Delete(ctx, userID)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.tokens.Delete(ctx, userID); err != nil {
		s.log.Warn("drop session after delete", zap.Uint64("user_id", userID), zap.Error(err))
	}
	s.dropLikeCaches(ctx, userID, fp)
	return nil
}

// dropLikeCaches 提交后处理点赞缓存：点过赞的 pin 走一次取消点赞，删掉的 pin 整体清掉
func (s *UserService) dropLikeCaches(ctx context.Context, userID uint64, fp *sqlstore.DeletedFootprint) {
	if s.likes == nil {
		return
	}
	for _, pinID := range fp.LikedPinIDs {
		if err := s.likes.RemoveLike(ctx, userID, pinID); err != nil {
			s.log.Warn("like cache after account delete", zap.Uint64("pin_id", pinID), zap.Error(err))
			_ = s.likes.DeleteCount(ctx, pinID)
		}
	}
	for _, pinID := range fp.OwnedPinIDs {
		if err := s.likes.Forget(ctx, pinID); err != nil {
			s.log.Warn("drop like cache", zap.Uint64("pin_id", pinID), zap.Error(err))
		}
	}
}

// GetProfile 计数总是可见，简介只在资料可见时返回
func (s *UserService) GetProfile(ctx context.Context, viewer Viewer, userID uint64) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	canView, err := s.vis.CanViewProfile(ctx, viewer, user)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		UserSummary:    summaryOf(user),
		FollowerCount:  user.FollowerCount,
		FollowingCount: user.FollowingCount,
		CanView:        canView,
	}
	if canView {
		p.Bio = user.Bio
	}
	if id, ok := viewer.ID(); ok && id != userID {
		rel, err := s.follows.GetFollowRequestStatus(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		p.Relation = rel
	}
	return p, nil
}

func (s *UserService) issue(ctx context.Context, userID uint64) (*pkg.Pair, error) {
	pair, err := s.jwt.GeneratePair(userID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, userID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

package service

import (
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"PinSocial/internal/observability"
	"PinSocial/internal/pkg"
	"PinSocial/internal/repository/redis"
	"PinSocial/internal/repository/sqlstore"
)

// Deps 构建服务所需的外部依赖，storage 可为空
type Deps struct {
	DB      *gorm.DB
	Redis   *goredis.Client
	JWT     *pkg.TokenManager
	Storage *pkg.ObjectStorage
	Metrics *observability.FollowMetrics
	Log     *zap.Logger
}

// Registry 聚合全部业务 Service，方便注入 handler
type Registry struct {
	User    *UserService
	Follow  *FollowService
	Pin     *PinService
	Like    *PinLikeService
	Comment *CommentService
}

// NewRegistry 使用共享 DB 与 Redis 构建所有服务
func NewRegistry(d Deps) *Registry {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	users := sqlstore.NewUserRepository(d.DB)
	follows := sqlstore.NewFollowRepository(d.DB)
	vis := NewVisibility(follows)
	likeCache := redis.NewLikeCache(d.Redis)

	followSvc := NewFollowService(users, follows, sqlstore.NewFollowRequestRepository(d.DB), vis, d.Metrics, log)
	pinSvc := NewPinService(sqlstore.NewPinRepository(d.DB), users, vis, likeCache, d.Storage, log)
	return &Registry{
		User:    NewUserService(users, redis.NewTokenStore(d.Redis, d.JWT.AccessTTL()), d.JWT, vis, followSvc, likeCache, log),
		Follow:  followSvc,
		Pin:     pinSvc,
		Like:    NewPinLikeService(sqlstore.NewPinLikeRepository(d.DB), pinSvc, likeCache, redis.NewDistLock(d.Redis), log),
		Comment: NewCommentService(sqlstore.NewCommentRepository(d.DB), pinSvc),
	}
}

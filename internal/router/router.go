package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"PinSocial/internal/config"
	"PinSocial/internal/handler"
	"PinSocial/internal/middleware"
	"PinSocial/internal/observability"
	"PinSocial/internal/service"
)

// New 组装 gin 引擎；metrics 为 nil 时不挂 /metrics
func New(cfg *config.Config, reg *service.Registry, health *handler.HealthHandler,
	metrics *observability.HTTPMetrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(cfg.Logging.RequestIDHeader))
	if cfg.Observability.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	}
	if metrics != nil {
		r.Use(metrics.Middleware())
		r.GET(cfg.Observability.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	r.Use(middleware.RequestLogger(log), middleware.ErrorHandler(log))

	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	user := handler.NewUserHandler(reg.User)
	follow := handler.NewFollowHandler(reg.Follow)
	pin := handler.NewPinHandler(reg.Pin)
	like := handler.NewPinLikeHandler(reg.Like)
	comment := handler.NewCommentHandler(reg.Comment)

	required := middleware.AuthRequired(reg.User)
	optional := middleware.AuthOptional(reg.User)

	api := r.Group("/api")

	// 账号相关接口
	account := api.Group("/user")
	{
		account.POST("/register", user.Register)
		account.POST("/login", user.Login)
		account.POST("/refresh", user.TokenRefresh)
		account.POST("/logout", required, user.Logout)
		account.POST("/change-password", required, user.ChangePassword)
		account.PATCH("/settings", required, user.UpdateSettings)
		account.DELETE("", required, user.DeleteAccount)
	}

	// 公开资料，可匿名
	users := api.Group("/users", optional)
	{
		users.GET("/:id", user.Profile)
		users.GET("/:id/followers", follow.ListFollowers)
		users.GET("/:id/following", follow.ListFollowings)
		users.GET("/:id/counts", follow.Counts)
		users.GET("/:id/pins", pin.ListByAuthor)
	}

	// 关注状态机
	follows := api.Group("/follows", required)
	{
		follows.POST("/:id", follow.Follow)
		follows.DELETE("/:id", follow.Unfollow)
		follows.GET("/:id/status", follow.Relation)
		follows.DELETE("/:id/request", follow.CancelRequest)
	}
	requests := api.Group("/follow-requests", required)
	{
		requests.GET("/incoming", follow.Incoming)
		requests.GET("/outgoing", follow.Outgoing)
		requests.POST("/:id/accept", follow.Accept)
		requests.POST("/:id/reject", follow.Reject)
	}
	api.DELETE("/followers/:id", required, follow.RemoveFollower)

	// pin、点赞、评论
	pins := api.Group("/pins")
	{
		pins.GET("", optional, pin.Feed)
		pins.GET("/:id", optional, pin.Get)
		pins.POST("", required, pin.Create)
		pins.PATCH("/:id", required, pin.Update)
		pins.DELETE("/:id", required, pin.Delete)
		pins.POST("/:id/image/presign", required, pin.PresignImage)
		pins.PUT("/:id/image", required, pin.AttachImage)

		pins.GET("/:id/like", optional, like.Status)
		pins.POST("/:id/like", required, like.Like)
		pins.DELETE("/:id/like", required, like.Unlike)

		pins.GET("/:id/comments", optional, comment.List)
		pins.POST("/:id/comments", required, comment.Create)
	}
	api.DELETE("/comments/:id", required, comment.Delete)

	return r
}

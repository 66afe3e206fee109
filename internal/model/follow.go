package model

import "time"

// Follow 关注边 follower -> following，(follower_id, following_id) 唯一
type Follow struct {
	ID          uint64 `gorm:"primaryKey"`
	FollowerID  uint64 `gorm:"not null;uniqueIndex:uk_follower_following,priority:1"`
	FollowingID uint64 `gorm:"not null;uniqueIndex:uk_follower_following,priority:2;index:idx_following_id"`
	CreatedAt   time.Time
}

func (Follow) TableName() string {
	return "follows"
}

type FollowRequestStatus string

const (
	RequestPending  FollowRequestStatus = "PENDING"
	RequestAccepted FollowRequestStatus = "ACCEPTED"
	RequestRejected FollowRequestStatus = "REJECTED"
)

// FollowRequest 私密账号的关注申请，每个 (sender, receiver) 最多一行
type FollowRequest struct {
	ID         uint64              `gorm:"primaryKey" json:"id"`
	SenderID   uint64              `gorm:"not null;uniqueIndex:uk_sender_receiver,priority:1" json:"sender_id"`
	ReceiverID uint64              `gorm:"not null;uniqueIndex:uk_sender_receiver,priority:2;index:idx_receiver_status,priority:1" json:"receiver_id"`
	Status     FollowRequestStatus `gorm:"size:16;not null;default:PENDING;index:idx_receiver_status,priority:2" json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (FollowRequest) TableName() string {
	return "follow_requests"
}

// SocialOutbox 关注事件表，与业务写入同一事务
type SocialOutbox struct {
	ID        uint64 `gorm:"primaryKey"`
	EventType string `gorm:"size:32;not null"`
	ActorID   uint64 `gorm:"not null"`
	TargetID  uint64 `gorm:"not null"`
	Payload   string `gorm:"type:text;not null"`
	Status    int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SocialOutbox) TableName() string { return "social_outbox" }

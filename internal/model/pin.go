package model

import "time"

type Pin struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	AuthorID  uint64    `gorm:"not null;index:idx_author_time,priority:1" json:"author_id"`
	Title     string    `gorm:"size:120;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURL  string    `gorm:"size:512" json:"image_url,omitempty"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	IsPublic  bool      `gorm:"not null;index" json:"is_public"` // 不设 default，否则 false 会被 gorm 当零值跳过
	LikeCount int64     `gorm:"not null;default:0" json:"like_count"`
	CreatedAt time.Time `gorm:"index:idx_author_time,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PinLike struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_user_pin,priority:1"`
	PinID     uint64 `gorm:"not null;uniqueIndex:uk_user_pin,priority:2;index"`
	CreatedAt time.Time
}

func (PinLike) TableName() string {
	return "pin_likes"
}

type Comment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	PinID     uint64    `gorm:"not null;index:idx_pin_time,priority:1" json:"pin_id"`
	AuthorID  uint64    `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_pin_time,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

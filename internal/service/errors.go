package service

import "errors"

// 关注状态机
var (
	ErrSelfFollow            = errors.New("cannot follow yourself")
	ErrAlreadyFollowing      = errors.New("already following this user")
	ErrTargetNotFound        = errors.New("target user not found")
	ErrRequestAlreadyPending = errors.New("follow request already pending")
	ErrRequestNotFound       = errors.New("follow request not found")
	ErrUnauthorized          = errors.New("not allowed to act on this request")
	ErrNotPending            = errors.New("follow request is not pending")
	ErrNotFollowing          = errors.New("not following this user")
)

// 其余业务错误
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrLoginRequired      = errors.New("login required")
	ErrSessionReplaced    = errors.New("account has been logged in elsewhere")
	ErrProfileNotVisible  = errors.New("profile is private")
	ErrPinNotFound        = errors.New("pin not found")
	ErrNotPinAuthor       = errors.New("only the author can modify this pin")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrNotCommentOwner    = errors.New("not allowed to delete this comment")
	ErrStorageDisabled    = errors.New("object storage is not configured")
	ErrUploadMissing      = errors.New("uploaded object not found")
)

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"PinSocial/internal/model"
	"PinSocial/internal/repository/sqlstore"
)

type CommentService struct {
	repo *sqlstore.CommentRepository
	pins *PinService
}

func NewCommentService(repo *sqlstore.CommentRepository, pins *PinService) *CommentService {
	return &CommentService{repo: repo, pins: pins}
}

func (s *CommentService) Create(ctx context.Context, authorID, pinID uint64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > 2000 {
		return nil, ErrInvalidArgument
	}
	if _, err := s.visiblePin(ctx, AsUser(authorID), pinID); err != nil {
		return nil, err
	}
	c := &model.Comment{PinID: pinID, AuthorID: authorID, Content: content}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// List 评论的可见性跟随 pin
func (s *CommentService) List(ctx context.Context, viewer Viewer, pinID, cursor uint64, limit int) ([]model.Comment, uint64, error) {
	if _, err := s.visiblePin(ctx, viewer, pinID); err != nil {
		return nil, 0, err
	}
	rows, next, err := s.repo.ListByPin(ctx, pinID, cursor, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return rows, next, nil
}

// Delete 评论作者或 pin 作者可以删除
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint64) error {
	c, err := s.repo.FindByID(ctx, commentID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("load comment: %w", err)
	}
	if c.AuthorID != userID {
		pin, err := s.visiblePin(ctx, AsUser(userID), c.PinID)
		if err != nil {
			return err
		}
		if pin.AuthorID != userID {
			return ErrNotCommentOwner
		}
	}
	if err := s.repo.Delete(ctx, commentID); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *CommentService) visiblePin(ctx context.Context, viewer Viewer, pinID uint64) (*model.Pin, error) {
	pin, err := s.pins.GetPinByID(ctx, viewer, pinID)
	if err != nil {
		return nil, err
	}
	if pin == nil {
		return nil, ErrPinNotFound
	}
	return pin, nil
}

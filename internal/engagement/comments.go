package engagement

import (
	"context"
	"errors"
	"fmt"

	"github.com/zfogg/vidshare/internal/models"
	"gorm.io/gorm"
)

func commentCounter(kind models.CommentTarget) counter {
	if kind == models.CommentOnPost {
		return postComments
	}
	return videoComments
}

// NewComment is the input to AddComment.
type NewComment struct {
	OwnerID    string
	TargetKind models.CommentTarget
	TargetID   string
	ParentID   *string
	Content    string
}

// AddComment inserts a comment and bumps the target's comment counter in the
// same transaction. Replies must hang off a live comment on the same target.
func (s *Service) AddComment(ctx context.Context, in NewComment) (*models.Comment, error) {
	if !in.TargetKind.Valid() {
		return nil, ErrInvalidKind
	}

	comment := &models.Comment{
		Content:    in.Content,
		OwnerID:    in.OwnerID,
		TargetKind: in.TargetKind,
		TargetID:   in.TargetID,
		ParentID:   in.ParentID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateCommentTarget(tx, in); err != nil {
			return err
		}
		if err := tx.Create(comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return increment(tx, commentCounter(in.TargetKind), in.TargetID)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func validateCommentTarget(tx *gorm.DB, in NewComment) error {
	switch in.TargetKind {
	case models.CommentOnVideo:
		var video models.Video
		if err := tx.Select("id", "owner_id", "is_published", "subscribers_only").
			Where("id = ?", in.TargetID).Take(&video).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		if err := checkVideoAccess(tx, &video, in.OwnerID); err != nil {
			return err
		}
	case models.CommentOnPost:
		if err := exists(tx, &models.Post{}, in.TargetID); err != nil {
			return err
		}
	}

	if in.ParentID != nil {
		var parent models.Comment
		if err := tx.Select("id", "target_kind", "target_id").
			Where("id = ?", *in.ParentID).Take(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidParent
			}
			return err
		}
		if parent.TargetKind != in.TargetKind || parent.TargetID != in.TargetID {
			return ErrInvalidParent
		}
	}
	return nil
}

// RemoveComment soft-deletes a comment owned by actorID and decrements the
// target counter. The conditional delete makes a second concurrent removal a
// no-op instead of a second decrement.
func (s *Service) RemoveComment(ctx context.Context, commentID, actorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Where("id = ?", commentID).Take(&comment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		if comment.OwnerID != actorID {
			return ErrNotOwner
		}

		res := tx.Where("id = ?", commentID).Delete(&models.Comment{})
		if res.Error != nil {
			return fmt.Errorf("delete comment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTargetNotFound
		}
		return decrement(tx, commentCounter(comment.TargetKind), comment.TargetID)
	})
}

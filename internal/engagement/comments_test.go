package engagement

import (
	"github.com/zfogg/vidshare/internal/models"
)

func (s *EngagementSuite) TestAddCommentBumpsCounter() {
	// SetupTest already added one comment.
	s.Equal(int64(1), s.reloadVideo().CommentsCount)

	_, err := s.svc.AddComment(s.ctx, NewComment{
		OwnerID: s.bob.ID, TargetKind: models.CommentOnPost, TargetID: s.post.ID, Content: "nice",
	})
	s.Require().NoError(err)

	var post models.Post
	s.Require().NoError(s.db.First(&post, "id = ?", s.post.ID).Error)
	s.Equal(int64(1), post.CommentsCount)
	s.assertNoDrift()
}

func (s *EngagementSuite) TestReplyMustShareTarget() {
	reply, err := s.svc.AddComment(s.ctx, NewComment{
		OwnerID: s.bob.ID, TargetKind: models.CommentOnVideo, TargetID: s.video.ID,
		ParentID: &s.comment.ID, Content: "agreed",
	})
	s.Require().NoError(err)
	s.Equal(s.comment.ID, *reply.ParentID)

	_, err = s.svc.AddComment(s.ctx, NewComment{
		OwnerID: s.bob.ID, TargetKind: models.CommentOnPost, TargetID: s.post.ID,
		ParentID: &s.comment.ID, Content: "wrong thread",
	})
	s.ErrorIs(err, ErrInvalidParent)
	s.Equal(int64(2), s.reloadVideo().CommentsCount)
}

func (s *EngagementSuite) TestCommentOnMissingTarget() {
	_, err := s.svc.AddComment(s.ctx, NewComment{
		OwnerID: s.bob.ID, TargetKind: models.CommentOnVideo,
		TargetID: "00000000-0000-4000-8000-000000000000", Content: "hello?",
	})
	s.ErrorIs(err, ErrTargetNotFound)

	_, err = s.svc.AddComment(s.ctx, NewComment{
		OwnerID: s.bob.ID, TargetKind: models.CommentTarget("playlist"), TargetID: s.video.ID, Content: "x",
	})
	s.ErrorIs(err, ErrInvalidKind)
}

func (s *EngagementSuite) TestRemoveCommentOwnerOnly() {
	err := s.svc.RemoveComment(s.ctx, s.comment.ID, s.bob.ID)
	s.ErrorIs(err, ErrNotOwner)
	s.Equal(int64(1), s.reloadVideo().CommentsCount)

	s.Require().NoError(s.svc.RemoveComment(s.ctx, s.comment.ID, s.alice.ID))
	s.Equal(int64(0), s.reloadVideo().CommentsCount)

	err = s.svc.RemoveComment(s.ctx, s.comment.ID, s.alice.ID)
	s.ErrorIs(err, ErrTargetNotFound)
	s.Equal(int64(0), s.reloadVideo().CommentsCount)
	s.assertNoDrift()
}

package engagement

import (
	"github.com/zfogg/vidshare/internal/models"
)

func (s *EngagementSuite) TestSameUserCountsOnce() {
	first, err := s.svc.LogView(s.ctx, s.video.ID, Viewer{UserID: s.bob.ID, IP: "198.51.100.7"})
	s.Require().NoError(err)
	s.True(first.Counted)
	s.Equal(int64(1), first.Views)

	second, err := s.svc.LogView(s.ctx, s.video.ID, Viewer{UserID: s.bob.ID, IP: "203.0.113.50"})
	s.Require().NoError(err)
	s.False(second.Counted)
	s.Equal(int64(1), second.Views)
	s.Equal(int64(1), s.reloadVideo().Views)
}

func (s *EngagementSuite) TestAnonymousViewsKeyedByIP() {
	res, err := s.svc.LogView(s.ctx, s.video.ID, Viewer{IP: "198.51.100.7"})
	s.Require().NoError(err)
	s.True(res.Counted)

	res, err = s.svc.LogView(s.ctx, s.video.ID, Viewer{IP: "198.51.100.7"})
	s.Require().NoError(err)
	s.False(res.Counted)

	res, err = s.svc.LogView(s.ctx, s.video.ID, Viewer{IP: "198.51.100.8"})
	s.Require().NoError(err)
	s.True(res.Counted)
	s.Equal(int64(2), res.Views)

	var rows []models.View
	s.Require().NoError(s.db.Where("video_id = ?", s.video.ID).Find(&rows).Error)
	s.Len(rows, 2)
	for _, r := range rows {
		s.Nil(r.ViewerID)
		s.NotNil(r.IP)
	}
	s.assertNoDrift()
}

func (s *EngagementSuite) TestViewRequiresIdentity() {
	_, err := s.svc.LogView(s.ctx, s.video.ID, Viewer{})
	s.ErrorIs(err, ErrNoViewerIdentity)
}

func (s *EngagementSuite) TestViewOfMissingOrDraftVideo() {
	_, err := s.svc.LogView(s.ctx, "00000000-0000-4000-8000-000000000000", Viewer{IP: "198.51.100.7"})
	s.ErrorIs(err, ErrTargetNotFound)

	s.Require().NoError(s.db.Model(&models.Video{}).Where("id = ?", s.video.ID).Update("is_published", false).Error)
	_, err = s.svc.LogView(s.ctx, s.video.ID, Viewer{UserID: s.bob.ID})
	s.ErrorIs(err, ErrTargetNotFound)
}

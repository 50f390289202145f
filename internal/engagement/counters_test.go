package engagement

import (
	"github.com/zfogg/vidshare/internal/models"
)

func (s *EngagementSuite) TestReconcileRepairsDrift() {
	_, err := s.svc.ToggleLike(s.ctx, s.bob.ID, models.LikeKindVideo, s.video.ID)
	s.Require().NoError(err)
	_, err = s.svc.ToggleSubscription(s.ctx, s.alice.ID, s.owner.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.db.Model(&models.Video{}).Where("id = ?", s.video.ID).
		UpdateColumns(map[string]interface{}{"likes_count": 7, "views": 3}).Error)
	s.Require().NoError(s.db.Model(&models.User{}).Where("id = ?", s.owner.ID).
		UpdateColumn("subscribers_count", 0).Error)

	drift, err := s.svc.FindDrift(s.ctx)
	s.Require().NoError(err)
	s.Len(drift, 3)

	byCounter := map[string]Drift{}
	for _, d := range drift {
		byCounter[d.Counter] = d
	}
	s.Equal(int64(7), byCounter["videos.likes_count"].Stored)
	s.Equal(int64(1), byCounter["videos.likes_count"].Actual)
	s.Equal(s.owner.ID, byCounter["users.subscribers_count"].ID)

	fixed, err := s.svc.ReconcileCounters(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), fixed["videos.likes_count"])
	s.Equal(int64(1), fixed["videos.views"])
	s.Equal(int64(1), fixed["users.subscribers_count"])

	s.assertNoDrift()
	v := s.reloadVideo()
	s.Equal(int64(1), v.LikesCount)
	s.Equal(int64(0), v.Views)
}

func (s *EngagementSuite) TestReconcileDriftLeavesMatchingCountersAlone() {
	_, err := s.svc.ToggleLike(s.ctx, s.bob.ID, models.LikeKindVideo, s.video.ID)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), s.reloadVideo().LikesCount)

	// A stale scan result: the toggle committed after the scan read the row.
	stale := []Drift{
		{Counter: "videos.likes_count", ID: s.video.ID, Stored: 0, Actual: 0},
		{Counter: "videos.comments_count", ID: s.video.ID, Stored: 5, Actual: 1},
	}
	fixed, err := s.svc.ReconcileDrift(s.ctx, stale)
	s.Require().NoError(err)
	s.Empty(fixed)

	v := s.reloadVideo()
	s.Equal(int64(1), v.LikesCount)
	s.Equal(int64(1), v.CommentsCount)
	s.assertNoDrift()
}

func (s *EngagementSuite) TestReconcileDriftRecountsUnderLock() {
	s.Require().NoError(s.db.Model(&models.Video{}).Where("id = ?", s.video.ID).
		UpdateColumn("comments_count", 4).Error)

	// The reported actual is ignored; the row is recounted.
	fixed, err := s.svc.ReconcileDrift(s.ctx, []Drift{
		{Counter: "videos.comments_count", ID: s.video.ID, Stored: 4, Actual: 99},
	})
	s.Require().NoError(err)
	s.Equal(map[string]int64{"videos.comments_count": 1}, fixed)
	s.Equal(int64(1), s.reloadVideo().CommentsCount)

	_, err = s.svc.ReconcileDrift(s.ctx, []Drift{{Counter: "videos.nope", ID: s.video.ID}})
	s.Error(err)
}

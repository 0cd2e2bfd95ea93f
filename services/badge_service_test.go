package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/cache"
	"github.com/szabolcsnagy0/kindly/models"
	"gorm.io/gorm"
)

// commandRecorder answers every redis command locally and remembers the deleted keys.
type commandRecorder struct {
	mu      sync.Mutex
	deleted []string
}

func (r *commandRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (r *commandRecorder) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		switch cmd.Name() {
		case "get":
			cmd.SetErr(redis.Nil)
			return redis.Nil
		case "del":
			r.mu.Lock()
			for _, arg := range cmd.Args()[1:] {
				r.deleted = append(r.deleted, arg.(string))
			}
			r.mu.Unlock()
		}
		return nil
	}
}

func (r *commandRecorder) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(context.Context, []redis.Cmder) error { return nil }
}

func (r *commandRecorder) deletions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deleted)
}

func recordCache(t *testing.T) *commandRecorder {
	t.Helper()
	rec := &commandRecorder{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(rec)
	cache.Client = client
	t.Cleanup(func() {
		cache.Client = nil
		_ = client.Close()
	})
	return rec
}

// insertCompletedHelps stores n completed requests with volunteerID accepted on each.
func (f *fixture) insertCompletedHelps(t *testing.T, seekerID, volunteerID uint, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		req := models.Request{
			Name:        "done",
			Description: "done",
			Status:      models.RequestCompleted,
			CreatorID:   seekerID,
		}
		require.NoError(t, f.db.Omit("Creator").Create(&req).Error)
		app := models.Application{
			RequestID: req.ID,
			UserID:    volunteerID,
			Status:    models.ApplicationAccepted,
			AppliedAt: time.Now().UTC(),
		}
		require.NoError(t, f.db.Omit("Volunteer").Create(&app).Error)
	}
}

func TestAwardBadgeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.volunteer(t)

	first, err := f.badges.AwardBadge(ctx, u.UserID, BadgeSpeedyService)
	require.NoError(t, err)
	second, err := f.badges.AwardBadge(ctx, u.UserID, BadgeSpeedyService)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.BadgeName, second.BadgeName)
	assert.True(t, second.IsCompleted)
	assert.Equal(t, 100, second.Progress)
	assert.Equal(t, []int{BadgeSpeedyService}, f.badgeIDs(t, u.UserID))
	assert.Equal(t, []int{BadgeSpeedyService}, []int(f.reload(t, u.UserID).Badges))
}

func TestAwardBadgeErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.volunteer(t)

	for _, id := range []int{150, 555, 999, CategoryBadgeID(8)} {
		_, err := f.badges.AwardBadge(ctx, u.UserID, id)
		assert.ErrorIs(t, err, apperrors.ErrBadgeNotFound, "badge %d", id)
	}
	assert.Empty(t, f.badgeIDs(t, u.UserID))

	_, err := f.badges.GetBadgeProgress(ctx, u, 555)
	assert.ErrorIs(t, err, apperrors.ErrBadgeNotFound)

	_, err = f.badges.AwardBadge(ctx, 424242, BadgeSpeedyService)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCheckAndAwardBadgesCatchesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)
	f.insertCompletedHelps(t, seeker.UserID, vol.UserID, 10)

	awarded, err := f.badges.CheckAndAwardBadges(ctx, vol.UserID)
	require.NoError(t, err)
	ids := make([]int, 0, len(awarded))
	for _, b := range awarded {
		ids = append(ids, b.BadgeID)
	}
	assert.Equal(t, []int{BadgeFirstHelpGiven, BadgeDedicatedHelper}, ids)

	again, err := f.badges.CheckAndAwardBadges(ctx, vol.UserID)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, []int{BadgeFirstHelpGiven, BadgeDedicatedHelper}, f.badgeIDs(t, vol.UserID))
}

func TestGetBadgeProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)
	f.insertCompletedHelps(t, seeker.UserID, vol.UserID, 3)

	p, err := f.badges.GetBadgeProgress(ctx, vol, BadgeDedicatedHelper)
	require.NoError(t, err)
	assert.Equal(t, BadgeProgress{BadgeID: BadgeDedicatedHelper, Progress: 30}, p)

	_, err = f.badges.AwardBadge(ctx, vol.UserID, BadgeSpeedyService)
	require.NoError(t, err)
	p, err = f.badges.GetBadgeProgress(ctx, vol, BadgeSpeedyService)
	require.NoError(t, err)
	assert.True(t, p.Completed)
	assert.Equal(t, 100, p.Progress)

	p, err = f.badges.GetBadgeProgress(ctx, seeker, BadgeCommunityPillar)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Progress, "three inserted requests count towards ten")

	_, err = f.badges.GetBadgeProgress(ctx, vol, 12345)
	assert.ErrorIs(t, err, apperrors.ErrBadgeNotFound)
}

func TestLeaderboardOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.volunteer(t), f.volunteer(t), f.volunteer(t)

	for _, id := range []int{BadgeSuperStar, BadgeSpeedyService} {
		_, err := f.badges.AwardBadge(ctx, a.UserID, id)
		require.NoError(t, err)
	}
	for _, id := range []int{BadgeLevelTwo, BadgeSpeedyService, BadgeAppreciative} {
		_, err := f.badges.AwardBadge(ctx, b.UserID, id)
		require.NoError(t, err)
	}

	board, err := f.badges.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)

	assert.Equal(t, a.UserID, board[0].UserID)
	assert.Equal(t, int64(1), board[0].LegendaryCount)
	assert.Equal(t, int64(2), board[0].BadgeCount)
	assert.Equal(t, b.UserID, board[1].UserID)
	assert.Equal(t, int64(3), board[1].BadgeCount)
	for _, e := range board {
		assert.NotEqual(t, c.UserID, e.UserID, "users without badges are excluded")
	}
}

func TestAwardSpecialBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.volunteer(t)
	in := SpecialBadgeInput{UserID: u.UserID, Name: "Founder", Description: "Was here first", Rarity: RarityLegendary}

	badge, allowed, err := f.badges.AwardSpecialBadge(ctx, "wrong", in)
	assert.NoError(t, err)
	assert.False(t, allowed)
	assert.Nil(t, badge)
	assert.Empty(t, f.badgeIDs(t, u.UserID))

	first, allowed, err := f.badges.AwardSpecialBadge(ctx, testAdminKey, in)
	require.NoError(t, err)
	require.True(t, allowed)
	assert.Equal(t, SpecialBadgeBase, first.BadgeID)

	second, _, err := f.badges.AwardSpecialBadge(ctx, testAdminKey, in)
	require.NoError(t, err)
	assert.Equal(t, SpecialBadgeBase+1, second.BadgeID)

	assert.ElementsMatch(t, []int{SpecialBadgeBase, SpecialBadgeBase + 1}, []int(f.reload(t, u.UserID).Badges))

	_, allowed, err = f.badges.AwardSpecialBadge(ctx, testAdminKey, SpecialBadgeInput{UserID: u.UserID, Name: "x", Rarity: 9})
	assert.True(t, allowed)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBulkAwardBadgesIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2 := f.volunteer(t), f.volunteer(t)

	results, allowed, err := f.badges.BulkAwardBadges(ctx, testAdminKey, []uint{u1.UserID, 987654, u2.UserID}, BadgeSpeedyService)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Equal(t, u1.UserID, results[0].UserID)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Success)

	assert.Equal(t, []int{BadgeSpeedyService}, f.badgeIDs(t, u1.UserID))
	assert.Equal(t, []int{BadgeSpeedyService}, f.badgeIDs(t, u2.UserID))

	_, allowed, err = f.badges.BulkAwardBadges(ctx, "nope", []uint{u1.UserID}, BadgeSpeedyService)
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestResetUserBadges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.volunteer(t)
	_, err := f.badges.AwardBadge(ctx, u.UserID, BadgeSpeedyService)
	require.NoError(t, err)

	allowed, err := f.badges.ResetUserBadges(ctx, "", u.UserID)
	assert.NoError(t, err)
	assert.False(t, allowed)
	assert.Len(t, f.badgeIDs(t, u.UserID), 1)

	allowed, err = f.badges.ResetUserBadges(ctx, testAdminKey, u.UserID)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, f.badgeIDs(t, u.UserID))
	assert.Empty(t, f.reload(t, u.UserID).Badges)

	badges, err := f.badges.GetUserBadges(ctx, u.UserID)
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestGrantExperienceAwardsLevelBadge(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, true)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.progression.GrantExperience(tx, &u, 99)
	}))
	assert.Empty(t, f.badgeIDs(t, u.ID))

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.progression.GrantExperience(tx, &u, 1)
	}))
	stored := f.reload(t, u.ID)
	assert.Equal(t, 2, stored.Level)
	assert.Equal(t, 0, stored.Experience)
	assert.Equal(t, []int{BadgeLevelTwo}, f.badgeIDs(t, u.ID))

	// a later grant at level >= 2 re-awards without duplicating
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.progression.GrantExperience(tx, &u, 500)
	}))
	assert.Equal(t, []int{BadgeLevelTwo}, f.badgeIDs(t, u.ID))
	assert.Equal(t, []int{BadgeLevelTwo}, []int(f.reload(t, u.ID).Badges))
}

func TestLeaderboardInvalidatedAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, true)
	rec := recordCache(t)

	err := f.badges.awardTx(ctx, f.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, u.ID)
		if err != nil {
			return err
		}
		_, created, err := f.badges.award(tx, user, BadgeSpeedyService)
		require.NoError(t, err)
		require.True(t, created)
		assert.Zero(t, rec.deletions(), "cache untouched while the award is uncommitted")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{cache.LeaderboardKey}, rec.deleted)

	err = f.badges.awardTx(ctx, f.db, func(tx *gorm.DB) error {
		user, err := lockUser(tx, u.ID)
		if err != nil {
			return err
		}
		if _, _, err := f.badges.award(tx, user, BadgeSuperStar); err != nil {
			return err
		}
		return errors.New("rolled back")
	})
	require.Error(t, err)
	assert.Equal(t, 1, rec.deletions(), "a rolled back award keeps the cache")
	assert.Equal(t, []int{BadgeSpeedyService}, f.badgeIDs(t, u.ID))
}

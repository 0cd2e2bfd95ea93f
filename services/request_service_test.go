package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
)

func TestRequestLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)

	req, err := f.requests.CreateRequest(ctx, seeker, requestInput(6000, 1))
	require.NoError(t, err)
	assert.Equal(t, models.RequestOpen, req.Status)
	assert.Contains(t, f.badgeIDs(t, seeker.UserID), BadgeGenerousSoul)

	_, err = f.applications.CreateApplication(ctx, vol, req.ID)
	require.NoError(t, err)
	var stored models.Request
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, 1, stored.ApplicationCount)

	require.NoError(t, f.applications.AcceptApplication(ctx, seeker, req.ID, vol.UserID))
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, models.RequestClosed, stored.Status)
	var app models.Application
	require.NoError(t, f.db.Where("request_id = ?", req.ID).First(&app).Error)
	assert.Equal(t, models.ApplicationAccepted, app.Status)

	before := f.reload(t, seeker.UserID)
	result, err := f.requests.CompleteRequest(ctx, seeker, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, result.Request.Status)
	assert.Equal(t, 110, result.ExperienceGained)

	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, models.RequestCompleted, stored.Status)

	seekerAfter, volAfter := f.reload(t, seeker.UserID), f.reload(t, vol.UserID)
	assert.Equal(t, 1, before.Level)
	assert.Equal(t, 2, seekerAfter.Level)
	assert.Equal(t, 10, seekerAfter.Experience)
	assert.Equal(t, seekerAfter.Level, volAfter.Level)
	assert.Equal(t, seekerAfter.Experience, volAfter.Experience)

	volBadges := f.badgeIDs(t, vol.UserID)
	assert.Contains(t, volBadges, BadgeFirstHelpGiven)
	assert.Contains(t, volBadges, CategoryBadgeID(1))
	assert.Contains(t, volBadges, BadgeSpeedyService)
	assert.Contains(t, volBadges, BadgeLevelTwo)
	assert.ElementsMatch(t, volBadges, []int(volAfter.Badges))
}

func TestCreateRequestMilestonesUseExactCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker := f.seeker(t)

	for i := 1; i <= 11; i++ {
		f.openRequest(t, seeker, 100)
		ids := f.badgeIDs(t, seeker.UserID)
		assert.Contains(t, ids, BadgeFirstHelpAsked, "after %d requests", i)
		if i < 10 {
			assert.NotContains(t, ids, BadgeCommunityPillar, "after %d requests", i)
		} else {
			assert.Contains(t, ids, BadgeCommunityPillar, "after %d requests", i)
		}
		assert.NotContains(t, ids, BadgeGenerousSoul)
	}

	_, err := f.requests.CreateRequest(ctx, seeker, requestInput(5000))
	require.NoError(t, err)
	assert.Contains(t, f.badgeIDs(t, seeker.UserID), BadgeGenerousSoul)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.requests.CreateRequest(ctx, f.volunteer(t), requestInput(0))
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	seeker := f.seeker(t)
	_, err = f.requests.CreateRequest(ctx, seeker, requestInput(0, 999))
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))

	_, err = f.requests.CreateRequest(ctx, seeker, requestInput(-1))
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
}

func TestRequestImmutableOnceApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)
	req := f.openRequest(t, seeker, 0, 1)

	_, err := f.applications.CreateApplication(ctx, vol, req.ID)
	require.NoError(t, err)

	_, err = f.requests.UpdateRequest(ctx, seeker, req.ID, requestInput(10, 2))
	assert.ErrorIs(t, err, apperrors.ErrRequestCannotBeUpdated)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))

	err = f.requests.DeleteRequest(ctx, seeker, req.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestCannotBeUpdated)

	require.NoError(t, f.applications.DeleteApplication(ctx, vol, req.ID))
	updated, err := f.requests.UpdateRequest(ctx, seeker, req.ID, requestInput(10, 2))
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Reward)
	require.Len(t, updated.RequestTypes, 1)
	assert.Equal(t, uint(2), updated.RequestTypes[0].ID)
}

func TestUpdateAndDeleteRequestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, intruder := f.seeker(t), f.seeker(t)
	req := f.openRequest(t, owner, 0, 1)

	_, err := f.requests.UpdateRequest(ctx, intruder, req.ID, requestInput(1))
	assert.ErrorIs(t, err, apperrors.ErrRequestCannotBeUpdated)
	assert.ErrorIs(t, f.requests.DeleteRequest(ctx, intruder, req.ID), apperrors.ErrRequestCannotBeUpdated)

	_, err = f.requests.UpdateRequest(ctx, owner, 99999, requestInput(1))
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)

	require.NoError(t, f.requests.DeleteRequest(ctx, owner, req.ID))
	var count int64
	require.NoError(t, f.db.Model(&models.Request{}).Where("id = ?", req.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCompleteRequestRequiresClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)
	req := f.openRequest(t, seeker, 0)

	_, err := f.requests.CompleteRequest(ctx, seeker, req.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestCannotBeUpdated)

	closed := f.closedRequest(t, seeker, vol)
	_, err = f.requests.CompleteRequest(ctx, f.seeker(t), closed.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)

	_, err = f.requests.CompleteRequest(ctx, seeker, closed.ID)
	require.NoError(t, err)
	_, err = f.requests.CompleteRequest(ctx, seeker, closed.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestCannotBeUpdated, "no transition out of COMPLETED")
}

func TestCompleteRequestSkipsSpeedyBadgeForSlowHelp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)
	req := f.closedRequest(t, seeker, vol, 3)

	f.requests.WithClock(func() time.Time { return time.Now().UTC().Add(48 * time.Hour) })
	result, err := f.requests.CompleteRequest(ctx, seeker, req.ID)
	require.NoError(t, err)

	assert.NotContains(t, result.VolunteerBadges, BadgeSpeedyService)
	assert.Contains(t, result.VolunteerBadges, CategoryBadgeID(3))
	assert.Contains(t, result.VolunteerBadges, BadgeFirstHelpGiven)
}

func TestCompleteRequestIgnoresCategoriesWithoutBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)
	require.NoError(t, f.db.Create(&models.RequestType{ID: 8, Name: "Tutoring"}).Error)

	req := f.closedRequest(t, seeker, vol, 2, 8)
	result, err := f.requests.CompleteRequest(ctx, seeker, req.ID)
	require.NoError(t, err)

	assert.Contains(t, result.VolunteerBadges, CategoryBadgeID(2))
	assert.NotContains(t, f.badgeIDs(t, vol.UserID), CategoryBadgeID(8))
}

func TestCompleteRequestProgressesVolunteerQuests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)

	q := models.Quest{UserID: vol.UserID, RequestTypeID: 5, TargetCount: 1, Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, f.db.Omit("RequestType").Create(&q).Error)

	req := f.closedRequest(t, seeker, vol, 5)
	result, err := f.requests.CompleteRequest(ctx, seeker, req.ID)
	require.NoError(t, err)
	require.Len(t, result.Quests, 1)
	assert.True(t, result.Quests[0].Completed)

	// 50 for completing a reward-free request, 50 for the quest
	stored := f.reload(t, vol.UserID)
	assert.Equal(t, 2, stored.Level)
	assert.Equal(t, 0, stored.Experience)
}

func TestGetMyRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol := f.seeker(t), f.volunteer(t)

	f.openRequest(t, seeker, 100)
	f.openRequest(t, seeker, 300)
	f.closedRequest(t, seeker, vol)
	f.openRequest(t, f.seeker(t), 100)

	all, err := f.requests.GetMyRequests(ctx, seeker, MyRequestsFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
	assert.Len(t, all.Data, 3)

	open, err := f.requests.GetMyRequests(ctx, seeker, MyRequestsFilter{Status: "open", PageQuery: PageQuery{Sort: "reward", Order: "asc"}})
	require.NoError(t, err)
	require.Len(t, open.Data, 2)
	assert.Equal(t, 100, open.Data[0].Reward)
	assert.Equal(t, 300, open.Data[1].Reward)

	paged, err := f.requests.GetMyRequests(ctx, seeker, MyRequestsFilter{PageQuery: PageQuery{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, paged.Total)
	assert.Len(t, paged.Data, 1)

	_, err = f.requests.GetMyRequests(ctx, seeker, MyRequestsFilter{Status: "bogus"})
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))

	_, err = f.requests.GetMyRequests(ctx, vol, MyRequestsFilter{})
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
}

func TestGetRequestsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol, other := f.seeker(t), f.volunteer(t), f.volunteer(t)

	cheap := f.openRequest(t, seeker, 100, 1)
	pricey := f.openRequest(t, seeker, 900, 2)
	applied := f.openRequest(t, seeker, 500, 1)
	_, err := f.applications.CreateApplication(ctx, vol, applied.ID)
	require.NoError(t, err)
	closedForOther := f.closedRequest(t, seeker, other)

	ids := func(p Page[RequestWithApplicationStatus]) []uint {
		out := make([]uint, 0, len(p.Data))
		for _, r := range p.Data {
			out = append(out, r.ID)
		}
		return out
	}

	all, err := f.requests.GetRequests(ctx, vol, RequestsFilter{Status: "ALL"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{cheap.ID, pricey.ID, applied.ID}, ids(all))
	assert.NotContains(t, ids(all), closedForOther.ID)

	appliedOnly, err := f.requests.GetRequests(ctx, vol, RequestsFilter{Status: "APPLIED"})
	require.NoError(t, err)
	require.Len(t, appliedOnly.Data, 1)
	assert.Equal(t, applied.ID, appliedOnly.Data[0].ID)
	assert.Equal(t, string(models.ApplicationPending), appliedOnly.Data[0].ApplicationStatus)
	assert.Equal(t, seeker.UserID, appliedOnly.Data[0].Creator.ID)

	min, max := 100, 900
	bounded, err := f.requests.GetRequests(ctx, vol, RequestsFilter{Status: "OPEN", MinReward: &min, MaxReward: &max})
	require.NoError(t, err)
	assert.Equal(t, []uint{applied.ID}, ids(bounded), "reward bounds are exclusive")

	byType, err := f.requests.GetRequests(ctx, vol, RequestsFilter{Status: "OPEN", RequestTypeIDs: []uint{1}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{cheap.ID, applied.ID}, ids(byType))
	for _, r := range byType.Data {
		if r.ID == cheap.ID {
			assert.Equal(t, models.NotApplied, r.ApplicationStatus)
		}
	}

	_, err = f.requests.GetRequests(ctx, seeker, RequestsFilter{})
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
}

func TestGetRequestDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeker, vol, bystander := f.seeker(t), f.volunteer(t), f.volunteer(t)
	req := f.completedRequest(t, seeker, vol, 1)

	detail, err := f.requests.GetRequestForHelpSeeker(ctx, seeker, req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Applications, 1)
	assert.Equal(t, vol.UserID, detail.Applications[0].Volunteer.ID)
	assert.False(t, detail.HasRatedHelper)

	_, err = f.requests.GetRequestForHelpSeeker(ctx, f.seeker(t), req.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)

	require.NoError(t, f.applications.RateVolunteer(ctx, seeker, req.ID, RatingInput{Rating: 4}))
	detail, err = f.requests.GetRequestForHelpSeeker(ctx, seeker, req.ID)
	require.NoError(t, err)
	assert.True(t, detail.HasRatedHelper)

	vd, err := f.requests.GetRequestForVolunteer(ctx, vol, req.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.ApplicationAccepted), vd.ApplicationStatus)
	assert.Equal(t, seeker.UserID, vd.Creator.ID)
	assert.False(t, vd.HasRatedSeeker)

	bd, err := f.requests.GetRequestForVolunteer(ctx, bystander, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotApplied, bd.ApplicationStatus)

	_, err = f.requests.GetRequestForVolunteer(ctx, vol, 424242)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
}

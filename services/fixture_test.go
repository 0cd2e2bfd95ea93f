package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/szabolcsnagy0/kindly/db/dbtest"
	"github.com/szabolcsnagy0/kindly/models"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminKey = "admin-secret"

var userSeq atomic.Int64

type fixture struct {
	db           *gorm.DB
	badges       *BadgeService
	progression  *Progression
	quests       *QuestService
	requests     *RequestService
	applications *ApplicationService
	users        *UserService
	stats        *StatsService
}

func newFixtureWith(t *testing.T, conn *gorm.DB) *fixture {
	t.Helper()
	logger := zap.NewNop()

	badges := NewBadgeService(conn, NewAdminGuard(testAdminKey), logger)
	progression := NewProgression(badges, logger)
	quests := NewQuestService(conn, progression, logger)
	return &fixture{
		db:           conn,
		badges:       badges,
		progression:  progression,
		quests:       quests,
		requests:     NewRequestService(conn, badges, progression, quests, logger),
		applications: NewApplicationService(conn, badges, progression, logger),
		users:        NewUserService(conn, quests, utils.NewTokenIssuer("test-secret", time.Hour), logger),
		stats:        NewStatsService(conn, logger),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, dbtest.New(t))
}

func (f *fixture) createUser(t *testing.T, volunteer bool) models.User {
	t.Helper()
	n := userSeq.Add(1)
	u := models.User{
		FirstName:    "User",
		LastName:     fmt.Sprintf("N%d", n),
		Email:        fmt.Sprintf("user%d@example.com", n),
		PasswordHash: "unused",
		IsVolunteer:  volunteer,
		Level:        1,
	}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) seeker(t *testing.T) Caller {
	t.Helper()
	return CallerFor(f.createUser(t, false))
}

func (f *fixture) volunteer(t *testing.T) Caller {
	t.Helper()
	return CallerFor(f.createUser(t, true))
}

func requestInput(reward int, typeIDs ...uint) RequestInput {
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	return RequestInput{
		Name:           "Help needed",
		Description:    "Carry groceries upstairs",
		Address:        "1 Main St",
		Latitude:       47.5,
		Longitude:      19.04,
		Start:          start,
		End:            start.Add(2 * time.Hour),
		Reward:         reward,
		RequestTypeIDs: typeIDs,
	}
}

func (f *fixture) openRequest(t *testing.T, seeker Caller, reward int, typeIDs ...uint) RequestInfo {
	t.Helper()
	req, err := f.requests.CreateRequest(context.Background(), seeker, requestInput(reward, typeIDs...))
	require.NoError(t, err)
	return req
}

// closedRequest returns a request with volunteer's application accepted.
func (f *fixture) closedRequest(t *testing.T, seeker, volunteer Caller, typeIDs ...uint) RequestInfo {
	t.Helper()
	ctx := context.Background()
	req := f.openRequest(t, seeker, 0, typeIDs...)
	_, err := f.applications.CreateApplication(ctx, volunteer, req.ID)
	require.NoError(t, err)
	require.NoError(t, f.applications.AcceptApplication(ctx, seeker, req.ID, volunteer.UserID))
	return req
}

func (f *fixture) completedRequest(t *testing.T, seeker, volunteer Caller, typeIDs ...uint) RequestInfo {
	t.Helper()
	req := f.closedRequest(t, seeker, volunteer, typeIDs...)
	_, err := f.requests.CompleteRequest(context.Background(), seeker, req.ID)
	require.NoError(t, err)
	return req
}

func (f *fixture) reload(t *testing.T, userID uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.First(&u, userID).Error)
	return u
}

func (f *fixture) badgeIDs(t *testing.T, userID uint) []int {
	t.Helper()
	var ids []int
	require.NoError(t, f.db.Model(&models.BadgeAchievement{}).
		Where("user_id = ?", userID).
		Order("badge_id").
		Pluck("badge_id", &ids).Error)
	return ids
}

package services

import (
	"time"

	"github.com/szabolcsnagy0/kindly/models"
)

// RequestInput carries the editable fields of a request.
type RequestInput struct {
	Name           string    `json:"name" validate:"required,max=255"`
	Description    string    `json:"description" validate:"required"`
	Address        string    `json:"address" validate:"max=255"`
	Latitude       float64   `json:"latitude" validate:"min=-90,max=90"`
	Longitude      float64   `json:"longitude" validate:"min=-180,max=180"`
	Start          time.Time `json:"start" validate:"required"`
	End            time.Time `json:"end" validate:"required,gtfield=Start"`
	Reward         int       `json:"reward" validate:"min=0"`
	RequestTypeIDs []uint    `json:"request_type_ids" validate:"dive,gt=0"`
}

type MyRequestsFilter struct {
	PageQuery
	Status string `form:"status" json:"status"`
}

type RequestsFilter struct {
	PageQuery
	Status         string `form:"status" json:"status"`
	MinReward      *int   `form:"min_reward" json:"min_reward"`
	MaxReward      *int   `form:"max_reward" json:"max_reward"`
	RequestTypeIDs []uint `form:"request_type_ids" json:"request_type_ids"`
}

type UserInfo struct {
	ID        uint    `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	AvgRating float64 `json:"avg_rating"`
}

type RequestInfo struct {
	ID               uint                 `json:"id"`
	Name             string               `json:"name"`
	Description      string               `json:"description"`
	Reward           int                  `json:"reward"`
	Status           models.RequestStatus `json:"status"`
	Start            time.Time            `json:"start"`
	End              time.Time            `json:"end"`
	Address          string               `json:"address"`
	Latitude         float64              `json:"latitude"`
	Longitude        float64              `json:"longitude"`
	CreatedAt        time.Time            `json:"created_at"`
	ApplicationCount int                  `json:"application_count"`
	RequestTypes     []models.RequestType `json:"request_types"`
}

type RequestWithApplicationStatus struct {
	RequestInfo
	ApplicationStatus string   `json:"application_status"`
	Creator           UserInfo `json:"creator"`
}

type ApplicationInfo struct {
	ID              uint                     `json:"id"`
	Status          models.ApplicationStatus `json:"status"`
	Volunteer       UserInfo                 `json:"volunteer"`
	AppliedAt       time.Time                `json:"applied_at"`
	VolunteerRating *int                     `json:"volunteer_rating"`
}

type RequestDetailForHelpSeeker struct {
	RequestInfo
	Applications   []ApplicationInfo `json:"applications"`
	HasRatedHelper bool              `json:"has_rated_helper"`
}

type RequestDetailForVolunteer struct {
	RequestInfo
	ApplicationStatus string   `json:"application_status"`
	Creator           UserInfo `json:"creator"`
	HasRatedSeeker    bool     `json:"has_rated_seeker"`
}

// UserProfile is a user together with derived progression data.
type UserProfile struct {
	models.User
	ExperienceToNextLevel int `json:"experience_to_next_level"`
}

func toRequestInfo(r models.Request) RequestInfo {
	types := r.RequestTypes
	if types == nil {
		types = []models.RequestType{}
	}
	return RequestInfo{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		Reward:           r.Reward,
		Status:           r.Status,
		Start:            r.StartsAt,
		End:              r.EndsAt,
		Address:          r.Address,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		CreatedAt:        r.CreatedAt,
		ApplicationCount: r.ApplicationCount,
		RequestTypes:     types,
	}
}

func toUserInfo(u models.User) UserInfo {
	return UserInfo{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, AvgRating: u.AvgRating}
}

func toApplicationInfo(a models.Application) ApplicationInfo {
	return ApplicationInfo{
		ID:              a.ID,
		Status:          a.Status,
		Volunteer:       toUserInfo(a.Volunteer),
		AppliedAt:       a.AppliedAt,
		VolunteerRating: a.VolunteerRating,
	}
}

func toUserProfile(u models.User) UserProfile {
	return UserProfile{User: u, ExperienceToNextLevel: u.ExperienceToNextLevel()}
}

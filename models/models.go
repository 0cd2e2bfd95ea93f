package models

import (
	"time"

	"gorm.io/datatypes"
)

type RequestStatus string

const (
	RequestOpen      RequestStatus = "OPEN"
	RequestClosed    RequestStatus = "CLOSED"
	RequestCompleted RequestStatus = "COMPLETED"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationAccepted ApplicationStatus = "ACCEPTED"
	ApplicationDeclined ApplicationStatus = "DECLINED"
)

// NotApplied is reported to volunteers for requests they have no application on.
const NotApplied = "NOT_APPLIED"

type User struct {
	ID           uint                     `gorm:"primaryKey" json:"id"`
	FirstName    string                   `gorm:"not null" json:"first_name"`
	LastName     string                   `gorm:"not null" json:"last_name"`
	Email        string                   `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string                   `gorm:"not null" json:"-"`
	DateOfBirth  time.Time                `json:"date_of_birth"`
	AboutMe      string                   `json:"about_me"`
	IsVolunteer  bool                     `gorm:"not null" json:"is_volunteer"`
	AvgRating    float64                  `gorm:"default:0" json:"avg_rating"`
	Level        int                      `gorm:"not null;default:1" json:"level"`
	Experience   int                      `gorm:"not null;default:0" json:"experience"`
	Badges       datatypes.JSONSlice[int] `json:"badges"`
	CreatedAt    time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
}

type RequestType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type Request struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	Name             string        `gorm:"not null" json:"name"`
	Description      string        `gorm:"not null" json:"description"`
	Address          string        `json:"address"`
	Latitude         float64       `json:"latitude"`
	Longitude        float64       `json:"longitude"`
	StartsAt         time.Time     `json:"start"`
	EndsAt           time.Time     `json:"end"`
	Reward           int           `gorm:"not null;default:0" json:"reward"`
	Status           RequestStatus `gorm:"type:varchar(16);not null;default:OPEN;index" json:"status"`
	ApplicationCount int           `gorm:"not null;default:0" json:"application_count"`
	CreatorID        uint          `gorm:"not null;index" json:"creator_id"`
	Creator          User          `gorm:"foreignKey:CreatorID" json:"-"`
	RequestTypes     []RequestType `gorm:"many2many:type_of;" json:"request_types"`
	Applications     []Application `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// CalculateExperience is the experience both parties gain when the request is completed.
func (r Request) CalculateExperience() int {
	return 50 + r.Reward/100
}

// CategoryIDs returns the ids of the request's categories.
func (r Request) CategoryIDs() []uint {
	ids := make([]uint, 0, len(r.RequestTypes))
	for _, rt := range r.RequestTypes {
		ids = append(ids, rt.ID)
	}
	return ids
}

type Application struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	RequestID        uint              `gorm:"not null;uniqueIndex:uq_application_request_user" json:"request_id"`
	UserID           uint              `gorm:"not null;uniqueIndex:uq_application_request_user;index" json:"user_id"`
	Volunteer        User              `gorm:"foreignKey:UserID" json:"-"`
	Status           ApplicationStatus `gorm:"type:varchar(16);not null;default:PENDING" json:"status"`
	AppliedAt        time.Time         `gorm:"not null" json:"applied_at"`
	VolunteerRating  *int              `json:"volunteer_rating"`
	HelpSeekerRating *int              `json:"help_seeker_rating"`
}

type Quest struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uint        `gorm:"not null;uniqueIndex:uq_quest_user_type" json:"user_id"`
	RequestTypeID uint        `gorm:"not null;uniqueIndex:uq_quest_user_type" json:"request_type_id"`
	RequestType   RequestType `gorm:"foreignKey:RequestTypeID" json:"request_type"`
	TargetCount   int         `gorm:"not null" json:"target_count"`
	CurrentCount  int         `gorm:"not null;default:0" json:"current_count"`
	Deadline      time.Time   `gorm:"not null" json:"deadline"`
}

// Expired reports whether the quest deadline has passed at now.
func (q Quest) Expired(now time.Time) bool {
	return q.Deadline.Before(now)
}

type BadgeAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:uq_user_badge" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID" json:"-"`
	BadgeID       int       `gorm:"not null;uniqueIndex:uq_user_badge;index" json:"badge_id"`
	BadgeName     string    `gorm:"not null" json:"badge_name"`
	Rarity        int       `gorm:"not null" json:"rarity"`
	Description   string    `json:"description"`
	Progress      int       `gorm:"default:0" json:"progress"`
	TotalRequired int       `gorm:"default:100" json:"total_required"`
	IsCompleted   bool      `gorm:"default:false" json:"is_completed"`
	AwardedAt     time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

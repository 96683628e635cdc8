package domain

import "time"

// Activity statuses. The backend is authoritative; these are the values the
// console knows how to display and transition between.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ActivityStatuses lists every status the console accepts, in display order.
var ActivityStatuses = []string{StatusPending, StatusActive, StatusCompleted, StatusCancelled}

// KnownStatus reports whether s is one of the four activity statuses.
func KnownStatus(s string) bool {
	for _, v := range ActivityStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Activity struct {
	ActivityID  int64     `json:"activityId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	SignupStart time.Time `json:"signupStart"`
	SignupEnd   time.Time `json:"signupEnd"`
	LeaderID    string    `json:"leaderId"`
	Budget      float64   `json:"budget"`
	Status      string    `json:"status" enum:"pending,active,completed,cancelled"`
	MaxPeople   int       `json:"maxPeople"`
}

// SignupStatusSigned is the only signup status with console-side meaning;
// every other value is backend-defined and passed through opaquely.
const SignupStatusSigned = "signed"

type Signup struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activityId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	SignupTime time.Time `json:"signupTime"`
}

// RawSignup is the signup record as it arrives on the wire. The backend does
// not pick one key spelling consistently: the activity and user references may
// arrive as activityId/userId or activityID/userID. Normalization to Signup
// happens once at the boundary (roster.Normalize); nothing downstream reads
// these fields directly.
type RawSignup struct {
	ID            int64      `json:"id"`
	ActivityID    *int64     `json:"activityId,omitempty"`
	AltActivityID *int64     `json:"activityID,omitempty"`
	UserID        *string    `json:"userId,omitempty"`
	AltUserID     *string    `json:"userID,omitempty"`
	Status        string     `json:"status"`
	SignupTime    *time.Time `json:"signupTime,omitempty"`
}

type User struct {
	UserID     string    `json:"user_id"`
	SchoolNum  string    `json:"school_num,omitempty"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Status     int       `json:"status"`
	Role       string    `json:"role,omitempty"`
	ClassID    string    `json:"class_id,omitempty"`
	CreateTime time.Time `json:"create_time"`
}

type Class struct {
	ClassID     string `json:"class_id"`
	ClassName   string `json:"class_name"`
	Grade       string `json:"grade,omitempty"`
	Major       string `json:"major,omitempty"`
	CounselorID string `json:"counselor_id,omitempty"`
	MemberCount int    `json:"member_count"`
}

// RosterRow is one denormalized, display-ready record combining a signup with
// its activity and the resolved user name. Rows are ephemeral: rebuilt on
// every refresh or cache update, never persisted.
type RosterRow struct {
	ID           int64     `json:"id"`
	ActivityID   int64     `json:"activityId"`
	ActivityName string    `json:"activityName"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Status       string    `json:"status"`
	StatusLabel  string    `json:"statusLabel"`
	SignupTime   time.Time `json:"signupTime"`
}

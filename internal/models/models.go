package models

import "time"

// Profile is the application-owned user record, keyed by the identity
// provider's stable user id. The provider is authoritative for email and
// name only; settings and working days belong to this database.
type Profile struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email"`
	FullName    *string      `json:"full_name,omitempty"`
	Settings    UserSettings `json:"settings"`
	WorkingDays WorkingDays  `json:"working_days"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type UserSettings struct {
	MilitaryTime bool     `json:"militaryTime"`
	WorkType     string   `json:"workType"`
	Categories   []string `json:"categories"`
}

const (
	WorkTypeFullTime = "full-time"
	WorkTypePartTime = "part-time"
)

// WorkingDay holds one weekday's schedule. Times are "HH:MM".
type WorkingDay struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	IsWorkingDay bool   `json:"isWorkingDay"`
}

// WorkingDays always carries all seven weekdays; inactive days keep their
// configured times so re-enabling a day restores them.
type WorkingDays struct {
	Monday    WorkingDay `json:"monday"`
	Tuesday   WorkingDay `json:"tuesday"`
	Wednesday WorkingDay `json:"wednesday"`
	Thursday  WorkingDay `json:"thursday"`
	Friday    WorkingDay `json:"friday"`
	Saturday  WorkingDay `json:"saturday"`
	Sunday    WorkingDay `json:"sunday"`
}

func DefaultSettings() UserSettings {
	return UserSettings{
		MilitaryTime: false,
		WorkType:     WorkTypeFullTime,
		Categories:   []string{"Work", "Personal", "Errands"},
	}
}

func DefaultWorkingDays() WorkingDays {
	workday := WorkingDay{Start: "09:00", End: "17:00", IsWorkingDay: true}
	weekend := WorkingDay{Start: "09:00", End: "17:00", IsWorkingDay: false}
	return WorkingDays{
		Monday:    workday,
		Tuesday:   workday,
		Wednesday: workday,
		Thursday:  workday,
		Friday:    workday,
		Saturday:  weekend,
		Sunday:    weekend,
	}
}

type AuditLogEntry struct {
	ID           int64          `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

package models

import "time"

// Report statuses in the approval lifecycle.
const (
	StatusUnread               = "unread"
	StatusPendingFirstApproval = "pending_first_approval"
	StatusApproved             = "approved"
	StatusRejected             = "rejected"
)

// Severity levels follow the hospital incident impact scale.
var severityLevels = map[string]bool{
	"0":     true,
	"1":     true,
	"2":     true,
	"3a":    true,
	"3b":    true,
	"4":     true,
	"5":     true,
	"other": true,
}

// IsValidLevel reports whether level is one of the fixed impact levels.
func IsValidLevel(level string) bool {
	return severityLevels[level]
}

// Report is a single incident submission with structured fields and
// workflow metadata. The workflow fields are mutated only by the
// workflow engine.
type Report struct {
	ID                     int64     `json:"id"`
	Level                  string    `json:"level"`
	OccurrenceDatetime     time.Time `json:"occurrence_datetime"`
	ReporterName           string    `json:"reporter_name"`
	JobType                string    `json:"job_type"`
	ConnectionWithAccident string    `json:"connection_with_accident"`
	YearsOfExperience      string    `json:"years_of_experience"`
	YearsSinceJoining      string    `json:"years_since_joining"`
	PatientID              string    `json:"patient_id"`
	PatientName            string    `json:"patient_name"`
	PatientGender          string    `json:"patient_gender"`
	PatientAge             int       `json:"patient_age"`
	DementiaStatus         string    `json:"dementia_status"`
	PatientStatusChange    string    `json:"patient_status_change"`
	PatientExplanation     string    `json:"patient_explanation"`
	FamilyExplanation      string    `json:"family_explanation"`
	Location               string    `json:"location"`
	ContentCategory        string    `json:"content_category"`
	ContentDetails         string    `json:"content_details"`
	CauseDetails           string    `json:"cause_details"`
	ManualRelation         string    `json:"manual_relation"`
	Situation              string    `json:"situation"`
	Countermeasure         string    `json:"countermeasure"`
	CreatedAt              time.Time `json:"created_at"`

	Status          string     `json:"status"`
	Approver1       string     `json:"approver1"`
	ApprovedAt1     *time.Time `json:"approved_at1"`
	Approver2       string     `json:"approver2"`
	ApprovedAt2     *time.Time `json:"approved_at2"`
	ManagerComments string     `json:"manager_comments"`
}

// ReportUpdate carries the subset of descriptive fields a resubmission or
// administrative correction may change. Nil pointers leave the stored value
// untouched.
type ReportUpdate struct {
	Level                  *string
	OccurrenceDatetime     *time.Time
	ReporterName           *string
	JobType                *string
	ConnectionWithAccident *string
	YearsOfExperience      *string
	YearsSinceJoining      *string
	PatientID              *string
	PatientName            *string
	Location               *string
	ContentCategory        *string
	ContentDetails         *string
	CauseDetails           *string
	ManualRelation         *string
	Situation              *string
	Countermeasure         *string
}

// Apply merges the update into the report in place.
func (u *ReportUpdate) Apply(r *Report) {
	if u.Level != nil {
		r.Level = *u.Level
	}
	if u.OccurrenceDatetime != nil {
		r.OccurrenceDatetime = *u.OccurrenceDatetime
	}
	if u.ReporterName != nil {
		r.ReporterName = *u.ReporterName
	}
	if u.JobType != nil {
		r.JobType = *u.JobType
	}
	if u.ConnectionWithAccident != nil {
		r.ConnectionWithAccident = *u.ConnectionWithAccident
	}
	if u.YearsOfExperience != nil {
		r.YearsOfExperience = *u.YearsOfExperience
	}
	if u.YearsSinceJoining != nil {
		r.YearsSinceJoining = *u.YearsSinceJoining
	}
	if u.PatientID != nil {
		r.PatientID = *u.PatientID
	}
	if u.PatientName != nil {
		r.PatientName = *u.PatientName
	}
	if u.Location != nil {
		r.Location = *u.Location
	}
	if u.ContentCategory != nil {
		r.ContentCategory = *u.ContentCategory
	}
	if u.ContentDetails != nil {
		r.ContentDetails = *u.ContentDetails
	}
	if u.CauseDetails != nil {
		r.CauseDetails = *u.CauseDetails
	}
	if u.ManualRelation != nil {
		r.ManualRelation = *u.ManualRelation
	}
	if u.Situation != nil {
		r.Situation = *u.Situation
	}
	if u.Countermeasure != nil {
		r.Countermeasure = *u.Countermeasure
	}
}

package models

import "time"

// Draft is an unsubmitted, editable snapshot of report fields owned by its
// author. Drafts carry no workflow state; submission promotes a draft to a
// Report and deletes it.
type Draft struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	DraftName              string     `json:"draft_name"`
	Level                  string     `json:"level"`
	OccurrenceDatetime     *time.Time `json:"occurrence_datetime"`
	ReporterName           string     `json:"reporter_name"`
	JobType                string     `json:"job_type"`
	ConnectionWithAccident string     `json:"connection_with_accident"`
	YearsOfExperience      string     `json:"years_of_experience"`
	YearsSinceJoining      string     `json:"years_since_joining"`
	PatientID              string     `json:"patient_id"`
	PatientName            string     `json:"patient_name"`
	Location               string     `json:"location"`
	ContentCategory        string     `json:"content_category"`
	ContentDetails         string     `json:"content_details"`
	CauseDetails           string     `json:"cause_details"`
	ManualRelation         string     `json:"manual_relation"`
	Situation              string     `json:"situation"`
	Countermeasure         string     `json:"countermeasure"`
	LastSavedAt            time.Time  `json:"last_saved_at"`
}

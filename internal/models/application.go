package models

import "time"

// Application lifecycle states.
const (
	ApplicationAttempted = "attempted"
	ApplicationScored    = "scored"
)

// Application is a student's single attempt at one posting's test.
type Application struct {
	BaseModel

	InternshipID string      `gorm:"type:uuid;not null;uniqueIndex:idx_applications_internship_student" json:"internship_id"`
	Internship   *Internship `gorm:"foreignKey:InternshipID" json:"internship,omitempty"`
	StudentID    string      `gorm:"type:uuid;not null;uniqueIndex:idx_applications_internship_student;index" json:"student_id"`
	Student      *User       `gorm:"foreignKey:StudentID" json:"student,omitempty"`

	Status       string `gorm:"size:16;not null;default:attempted" json:"status"`
	ScorePercent int    `gorm:"not null;default:0" json:"score_percent"`
	Passed       bool   `gorm:"not null;default:false" json:"passed"`

	ResumeFilename   *string    `gorm:"size:512" json:"resume_filename,omitempty"`
	AppliedAt        time.Time  `gorm:"not null" json:"applied_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ResumeUploadedAt *time.Time `json:"resume_uploaded_at,omitempty"`
}

// IsScored reports whether the test has been submitted.
func (a *Application) IsScored() bool {
	return a != nil && a.Status == ApplicationScored
}

// HasResume reports whether a resume reference is recorded.
func (a *Application) HasResume() bool {
	return a != nil && a.ResumeFilename != nil && *a.ResumeFilename != ""
}

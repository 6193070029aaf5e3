package models

import (
	"gorm.io/datatypes"

	"github.com/charlesng35/internhub/internal/scoring"
)

// DefaultCutoffPercent applies when a posting is created without a cutoff.
const DefaultCutoffPercent = 50

// Internship is a posting with its screening test. Postings are immutable
// once created.
type Internship struct {
	BaseModel

	CompanyID      string                               `gorm:"type:uuid;not null;index" json:"company_id"`
	Company        *User                                `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Title          string                               `gorm:"size:255;not null" json:"title"`
	Description    string                               `gorm:"type:text" json:"description"`
	TestDefinition datatypes.JSONSlice[scoring.Question] `json:"-"`
	CutoffPercent  int                                  `gorm:"not null;default:50" json:"cutoff_percent"`
}

// Questions returns the parsed test definition.
func (i *Internship) Questions() []scoring.Question {
	if i == nil {
		return nil
	}
	return []scoring.Question(i.TestDefinition)
}

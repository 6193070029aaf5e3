package handlers

import (
	"net/url"
	"time"

	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/services"
)

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type postingView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CutoffPercent int       `json:"cutoff_percent"`
	QuestionCount int       `json:"question_count"`
	Company       string    `json:"company,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type applicationView struct {
	ID            string     `json:"id"`
	PostingID     string     `json:"posting_id"`
	PostingTitle  string     `json:"posting_title,omitempty"`
	Status        string     `json:"status"`
	ScorePercent  int        `json:"score_percent"`
	Passed        bool       `json:"passed"`
	HasResume     bool       `json:"has_resume"`
	AppliedAt     time.Time  `json:"applied_at"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	NextStep      string     `json:"next_step,omitempty"`
	ResumeURL     string     `json:"resume_url,omitempty"`
	CutoffPercent int        `json:"cutoff_percent"`
}

type applicantView struct {
	ApplicationID string     `json:"application_id"`
	Student       string     `json:"student"`
	ScorePercent  int        `json:"score_percent"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	Resume        string     `json:"resume,omitempty"`
	ResumeURL     string     `json:"resume_url,omitempty"`
}

func newUserView(id *models.User) *userView {
	if id == nil {
		return nil
	}
	return &userView{ID: id.ID, Username: id.Username, Role: id.Role}
}

func newPostingView(p models.Internship) postingView {
	view := postingView{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		CutoffPercent: p.CutoffPercent,
		QuestionCount: len(p.Questions()),
		CreatedAt:     p.CreatedAt,
	}
	if p.Company != nil {
		view.Company = p.Company.Username
	}
	return view
}

func newPostingViews(postings []models.Internship) []postingView {
	views := make([]postingView, 0, len(postings))
	for _, p := range postings {
		views = append(views, newPostingView(p))
	}
	return views
}

func newApplicationView(a models.Application) applicationView {
	view := applicationView{
		ID:           a.ID,
		PostingID:    a.InternshipID,
		Status:       a.Status,
		ScorePercent: a.ScorePercent,
		Passed:       a.Passed,
		HasResume:    a.HasResume(),
		AppliedAt:    a.AppliedAt,
		SubmittedAt:  a.SubmittedAt,
	}
	if a.Internship != nil {
		view.PostingTitle = a.Internship.Title
		view.CutoffPercent = a.Internship.CutoffPercent
	}
	switch {
	case !a.IsScored():
		view.NextStep = "/test/" + a.ID
	case a.Passed && !a.HasResume():
		view.NextStep = "/upload_resume/" + a.ID
	}
	if a.HasResume() {
		view.ResumeURL = resumeURL(*a.ResumeFilename)
	}
	return view
}

func newApplicantViews(entries []services.ResumeEntry) []applicantView {
	views := make([]applicantView, 0, len(entries))
	for _, e := range entries {
		view := applicantView{
			ApplicationID: e.ApplicationID,
			Student:       e.StudentUsername,
			ScorePercent:  e.ScorePercent,
			SubmittedAt:   e.SubmittedAt,
		}
		if e.ResumeFilename != nil && *e.ResumeFilename != "" {
			view.Resume = *e.ResumeFilename
			view.ResumeURL = resumeURL(*e.ResumeFilename)
		}
		views = append(views, view)
	}
	return views
}

func resumeURL(name string) string {
	return "/uploads/" + url.PathEscape(name)
}

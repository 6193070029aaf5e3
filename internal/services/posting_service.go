package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/scoring"
	"github.com/charlesng35/internhub/pkg/logger"
)

// CreatePostingInput carries the raw posting form.
type CreatePostingInput struct {
	Title          string
	Description    string
	TestDefinition string
	// CutoffPercent is nil when the form left it blank.
	CutoffPercent *int
}

// ResumeEntry is one passing applicant on the company's ranked list.
type ResumeEntry struct {
	ApplicationID   string     `json:"application_id"`
	StudentID       string     `json:"student_id"`
	StudentUsername string     `json:"student_username"`
	ScorePercent    int        `json:"score_percent"`
	ResumeFilename  *string    `json:"resume_filename,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
}

// PostingService manages internship postings.
type PostingService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewPostingService constructs a PostingService.
func NewPostingService(db *gorm.DB) (*PostingService, error) {
	if db == nil {
		return nil, errors.New("posting service: db is required")
	}
	return &PostingService{db: db, log: logger.WithModule("services.postings")}, nil
}

// Create validates and stores a posting owned by companyID. Nothing is
// stored when the test definition or cutoff is invalid.
func (s *PostingService) Create(ctx context.Context, companyID string, input CreatePostingInput) (*models.Internship, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("Title is required")
	}

	cutoff := models.DefaultCutoffPercent
	if input.CutoffPercent != nil {
		cutoff = *input.CutoffPercent
	}
	if cutoff < 0 || cutoff > 100 {
		return nil, ErrInvalidCutoff
	}

	questions, err := scoring.Parse(input.TestDefinition)
	if err != nil {
		return nil, ErrInvalidTestDefinition.WithInternal(err)
	}

	posting := &models.Internship{
		CompanyID:      companyID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		TestDefinition: datatypes.NewJSONSlice(questions),
		CutoffPercent:  cutoff,
	}
	if err := s.db.WithContext(ctx).Create(posting).Error; err != nil {
		return nil, fmt.Errorf("posting service: create posting: %w", err)
	}

	s.log.Info("posting created",
		zap.String("posting_id", posting.ID),
		zap.String("company_id", companyID),
		zap.Int("questions", len(questions)))
	return posting, nil
}

// List returns every posting, newest first.
func (s *PostingService) List(ctx context.Context) ([]models.Internship, error) {
	var postings []models.Internship
	err := s.db.WithContext(ensureContext(ctx)).
		Preload("Company").
		Order("created_at DESC").
		Find(&postings).Error
	if err != nil {
		return nil, fmt.Errorf("posting service: list postings: %w", err)
	}
	return postings, nil
}

// ListByCompany returns the company's postings, newest first.
func (s *PostingService) ListByCompany(ctx context.Context, companyID string) ([]models.Internship, error) {
	var postings []models.Internship
	err := s.db.WithContext(ensureContext(ctx)).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&postings).Error
	if err != nil {
		return nil, fmt.Errorf("posting service: list company postings: %w", err)
	}
	return postings, nil
}

// Get loads a posting by ID.
func (s *PostingService) Get(ctx context.Context, id string) (*models.Internship, error) {
	return findPosting(s.db.WithContext(ensureContext(ctx)), id)
}

// Resumes lists passing applicants of a posting for its owner, best score
// first and earliest submission first among equal scores.
func (s *PostingService) Resumes(ctx context.Context, companyID, postingID string) (*models.Internship, []ResumeEntry, error) {
	ctx = ensureContext(ctx)

	posting, err := findPosting(s.db.WithContext(ctx), postingID)
	if err != nil {
		return nil, nil, err
	}
	if posting.CompanyID != companyID {
		return nil, nil, ErrAccessDenied
	}

	var applications []models.Application
	err = s.db.WithContext(ctx).
		Preload("Student").
		Where("internship_id = ? AND passed = ?", posting.ID, true).
		Order("score_percent DESC").
		Order("submitted_at ASC").
		Find(&applications).Error
	if err != nil {
		return nil, nil, fmt.Errorf("posting service: list resumes: %w", err)
	}

	entries := make([]ResumeEntry, 0, len(applications))
	for _, app := range applications {
		entry := ResumeEntry{
			ApplicationID:  app.ID,
			StudentID:      app.StudentID,
			ScorePercent:   app.ScorePercent,
			ResumeFilename: app.ResumeFilename,
			SubmittedAt:    app.SubmittedAt,
		}
		if app.Student != nil {
			entry.StudentUsername = app.Student.Username
		}
		entries = append(entries, entry)
	}
	return posting, entries, nil
}

func findPosting(db *gorm.DB, id string) (*models.Internship, error) {
	if !validID(id) {
		return nil, ErrPostingNotFound
	}

	var posting models.Internship
	err := db.Take(&posting, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("posting service: get posting: %w", err)
	}
	return &posting, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/events"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/scoring"
	"github.com/charlesng35/internhub/internal/storage"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/metrics"
)

// DefaultMaxUploadBytes caps resume uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 5 << 20

// ResumeUpload is an uploaded resume as received from the form.
type ResumeUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.Reader
}

// TestView is a test as presented to the student, without answer keys.
type TestView struct {
	Application *models.Application      `json:"application"`
	Posting     *models.Internship       `json:"posting"`
	Questions   []scoring.PublicQuestion `json:"questions"`
}

// Submission is the outcome of grading a test.
type Submission struct {
	Application   *models.Application `json:"application"`
	Result        scoring.Result      `json:"result"`
	CutoffPercent int                 `json:"cutoff_percent"`
}

// StudentDashboard lists postings alongside the student's applications.
type StudentDashboard struct {
	Postings     []models.Internship  `json:"postings"`
	AppliedIDs   []string             `json:"applied_posting_ids"`
	Applications []models.Application `json:"applications"`
}

// ApplicationOption customises the ApplicationService.
type ApplicationOption func(*ApplicationService)

// WithApplicationClock injects a custom time source.
func WithApplicationClock(clock func() time.Time) ApplicationOption {
	return func(s *ApplicationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithApplicationEvents publishes application lifecycle events.
func WithApplicationEvents(publisher events.Publisher) ApplicationOption {
	return func(s *ApplicationService) {
		s.events = ensurePublisher(publisher)
	}
}

// WithMaxUploadBytes caps resume size.
func WithMaxUploadBytes(n int64) ApplicationOption {
	return func(s *ApplicationService) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// ApplicationService runs the apply, test and resume workflow.
type ApplicationService struct {
	db        *gorm.DB
	files     storage.FileStore
	events    events.Publisher
	maxUpload int64
	now       func() time.Time
	log       *zap.Logger
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(db *gorm.DB, files storage.FileStore, opts ...ApplicationOption) (*ApplicationService, error) {
	if db == nil {
		return nil, errors.New("application service: db is required")
	}
	if files == nil {
		return nil, errors.New("application service: file store is required")
	}
	svc := &ApplicationService{
		db:        db,
		files:     files,
		events:    events.NoopPublisher{},
		maxUpload: DefaultMaxUploadBytes,
		now:       time.Now,
		log:       logger.WithModule("services.applications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// MaxUploadBytes reports the configured resume size limit.
func (s *ApplicationService) MaxUploadBytes() int64 {
	return s.maxUpload
}

// Apply records a student's single attempt at a posting.
func (s *ApplicationService) Apply(ctx context.Context, studentID, postingID string) (*models.Application, error) {
	ctx = ensureContext(ctx)

	var application *models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posting, err := findPosting(tx, postingID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("internship_id = ? AND student_id = ?", posting.ID, studentID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("application service: check existing: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyApplied
		}

		application = &models.Application{
			InternshipID: posting.ID,
			StudentID:    studentID,
			Status:       models.ApplicationAttempted,
			AppliedAt:    s.now(),
		}
		return tx.Create(application).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyApplied) || isUniqueConstraintError(err) {
			metrics.Applications.WithLabelValues("duplicate").Inc()
			return nil, ErrAlreadyApplied
		}
		return nil, wrapServiceError("application service: apply", err)
	}

	metrics.Applications.WithLabelValues("created").Inc()
	publishEvent(ctx, s.events, s.log, events.New(events.ApplicationCreated, application.AppliedAt, map[string]any{
		"application_id": application.ID,
		"posting_id":     application.InternshipID,
		"student_id":     studentID,
	}))
	return application, nil
}

// ApplyTarget returns the posting a student is about to apply to without
// creating anything. ErrAlreadyApplied reports an existing application.
func (s *ApplicationService) ApplyTarget(ctx context.Context, studentID, postingID string) (*models.Internship, error) {
	db := s.db.WithContext(ensureContext(ctx))

	posting, err := findPosting(db, postingID)
	if err != nil {
		return nil, wrapServiceError("application service: apply target", err)
	}

	var existing int64
	if err := db.Model(&models.Application{}).
		Where("internship_id = ? AND student_id = ?", posting.ID, studentID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("application service: check existing: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyApplied
	}
	return posting, nil
}

// Test returns the questions of an unsubmitted application owned by studentID.
func (s *ApplicationService) Test(ctx context.Context, studentID, applicationID string) (*TestView, error) {
	application, err := s.owned(s.db.WithContext(ensureContext(ctx)), studentID, applicationID)
	if err != nil {
		return nil, err
	}
	if application.IsScored() {
		return nil, ErrTestAlreadySubmitted
	}

	return &TestView{
		Application: application,
		Posting:     application.Internship,
		Questions:   scoring.Redact(application.Internship.Questions()),
	}, nil
}

// Submit grades answers and stores the score. Only the first submission for
// an application is accepted.
func (s *ApplicationService) Submit(ctx context.Context, studentID, applicationID string, answers scoring.Answers) (*Submission, error) {
	ctx = ensureContext(ctx)

	var submission *Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		application, err := s.owned(tx, studentID, applicationID)
		if err != nil {
			return err
		}
		if application.IsScored() {
			return ErrTestAlreadySubmitted
		}

		posting := application.Internship
		result := scoring.Grade(posting.Questions(), answers, posting.CutoffPercent)
		submittedAt := s.now()

		update := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", application.ID, models.ApplicationAttempted).
			Updates(map[string]any{
				"status":        models.ApplicationScored,
				"score_percent": result.ScorePercent,
				"passed":        result.Passed,
				"submitted_at":  submittedAt,
			})
		if update.Error != nil {
			return fmt.Errorf("application service: store score: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			return ErrTestAlreadySubmitted
		}

		application.Status = models.ApplicationScored
		application.ScorePercent = result.ScorePercent
		application.Passed = result.Passed
		application.SubmittedAt = &submittedAt

		submission = &Submission{
			Application:   application,
			Result:        result,
			CutoffPercent: posting.CutoffPercent,
		}
		return nil
	})
	if err != nil {
		return nil, wrapServiceError("application service: submit", err)
	}

	metrics.TestScores.WithLabelValues(fmt.Sprintf("%t", submission.Result.Passed)).
		Observe(float64(submission.Result.ScorePercent))
	s.log.Info("test scored",
		zap.String("application_id", applicationID),
		zap.Int("score_percent", submission.Result.ScorePercent),
		zap.Bool("passed", submission.Result.Passed))
	publishEvent(ctx, s.events, s.log, events.New(events.ApplicationScored, *submission.Application.SubmittedAt, map[string]any{
		"application_id": applicationID,
		"posting_id":     submission.Application.InternshipID,
		"student_id":     studentID,
		"score_percent":  submission.Result.ScorePercent,
		"passed":         submission.Result.Passed,
	}))
	return submission, nil
}

// ResumeTarget returns the application when its owner may upload a resume.
func (s *ApplicationService) ResumeTarget(ctx context.Context, studentID, applicationID string) (*models.Application, error) {
	application, err := s.owned(s.db.WithContext(ensureContext(ctx)), studentID, applicationID)
	if err != nil {
		return nil, err
	}
	if !application.Passed {
		return nil, ErrNotEligible
	}
	return application, nil
}

// UploadResume stores the resume of a passed application and records its
// name. A nil upload or one without a filename means no file was selected.
func (s *ApplicationService) UploadResume(ctx context.Context, studentID, applicationID string, upload *ResumeUpload) (*models.Application, error) {
	ctx = ensureContext(ctx)

	application, err := s.ResumeTarget(ctx, studentID, applicationID)
	if err != nil {
		return nil, err
	}
	if upload == nil || upload.Content == nil || strings.TrimSpace(upload.Filename) == "" {
		return nil, ErrNoFileSelected
	}
	if upload.Size > s.maxUpload {
		return nil, ErrFileTooLarge
	}

	uploadedAt := s.now()
	name := storage.ResumeName(studentID, uploadedAt, upload.Filename)
	content := io.LimitReader(upload.Content, s.maxUpload+1)
	if err := s.files.Save(ctx, name, content, upload.Size, upload.ContentType); err != nil {
		return nil, fmt.Errorf("application service: store resume: %w", err)
	}

	previous := application.ResumeFilename
	if err := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", application.ID).
		Updates(map[string]any{
			"resume_filename":    name,
			"resume_uploaded_at": uploadedAt,
		}).Error; err != nil {
		_ = s.files.Delete(ctx, name)
		return nil, fmt.Errorf("application service: record resume: %w", err)
	}
	if previous != nil && *previous != "" && *previous != name {
		if err := s.files.Delete(ctx, *previous); err != nil {
			s.log.Warn("remove replaced resume failed", zap.String("file", *previous), zap.Error(err))
		}
	}

	application.ResumeFilename = &name
	application.ResumeUploadedAt = &uploadedAt

	metrics.ResumeUploads.Inc()
	publishEvent(ctx, s.events, s.log, events.New(events.ResumeUploaded, uploadedAt, map[string]any{
		"application_id":  application.ID,
		"posting_id":      application.InternshipID,
		"student_id":      studentID,
		"resume_filename": name,
	}))
	return application, nil
}

// OpenResume opens a stored resume for the uploading student or the company
// owning the posting.
func (s *ApplicationService) OpenResume(ctx context.Context, viewerID, filename string) (*storage.Object, error) {
	ctx = ensureContext(ctx)
	if !storage.ValidName(filename) {
		return nil, ErrResumeNotFound
	}

	var application models.Application
	err := s.db.WithContext(ctx).
		Preload("Internship").
		Where("resume_filename = ?", filename).
		Take(&application).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("application service: find resume: %w", err)
	}

	allowed := application.StudentID == viewerID ||
		(application.Internship != nil && application.Internship.CompanyID == viewerID)
	if !allowed {
		return nil, ErrAccessDenied
	}

	object, err := s.files.Open(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("application service: open resume: %w", err)
	}
	return object, nil
}

// Dashboard assembles the student dashboard.
func (s *ApplicationService) Dashboard(ctx context.Context, studentID string) (*StudentDashboard, error) {
	db := s.db.WithContext(ensureContext(ctx))

	var postings []models.Internship
	if err := db.Preload("Company").Order("created_at DESC").Find(&postings).Error; err != nil {
		return nil, fmt.Errorf("application service: list postings: %w", err)
	}

	var applications []models.Application
	if err := db.Preload("Internship").
		Where("student_id = ?", studentID).
		Order("applied_at DESC").
		Find(&applications).Error; err != nil {
		return nil, fmt.Errorf("application service: list applications: %w", err)
	}

	applied := make([]string, 0, len(applications))
	for _, app := range applications {
		applied = append(applied, app.InternshipID)
	}

	return &StudentDashboard{
		Postings:     postings,
		AppliedIDs:   applied,
		Applications: applications,
	}, nil
}

// owned loads an application with its posting and checks it belongs to studentID.
func (s *ApplicationService) owned(db *gorm.DB, studentID, applicationID string) (*models.Application, error) {
	if !validID(applicationID) {
		return nil, ErrApplicationNotFound
	}

	var application models.Application
	err := db.Preload("Internship").Take(&application, "id = ?", applicationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("application service: get application: %w", err)
	}
	if application.StudentID != studentID {
		return nil, ErrAccessDenied
	}
	if application.Internship == nil {
		return nil, ErrPostingNotFound
	}
	return &application, nil
}

package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/database/testutil"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/scoring"
	"github.com/charlesng35/internhub/internal/storage"
)

type applicationFixture struct {
	db       *gorm.DB
	apps     *ApplicationService
	postings *PostingService
	files    *storage.LocalStore
	clock    *fixedClock
	company  *models.User
	student  *models.User
}

func newApplicationFixture(t *testing.T, opts ...ApplicationOption) *applicationFixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFixedClock()
	files := newLocalFiles(t)

	postings, err := NewPostingService(db)
	require.NoError(t, err)
	opts = append([]ApplicationOption{WithApplicationClock(clock.Now)}, opts...)
	apps, err := NewApplicationService(db, files, opts...)
	require.NoError(t, err)

	return &applicationFixture{
		db:       db,
		apps:     apps,
		postings: postings,
		files:    files,
		clock:    clock,
		company:  seedUser(t, db, "acme", models.RoleCompany),
		student:  seedUser(t, db, "bob", models.RoleStudent),
	}
}

func TestApplicationApplyOnce(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)

	app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationAttempted, app.Status)

	_, err = fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.ErrorIs(t, err, ErrAlreadyApplied)

	var count int64
	require.NoError(t, fx.db.Model(&models.Application{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = fx.apps.Apply(ctx, fx.student.ID, "7b7c1e7a-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, ErrPostingNotFound)
}

func TestApplicationApplyTargetCreatesNothing(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)

	target, err := fx.apps.ApplyTarget(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)
	require.Equal(t, posting.ID, target.ID)

	var count int64
	require.NoError(t, fx.db.Model(&models.Application{}).Count(&count).Error)
	require.Zero(t, count)

	_, err = fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)
	_, err = fx.apps.ApplyTarget(ctx, fx.student.ID, posting.ID)
	require.ErrorIs(t, err, ErrAlreadyApplied)

	_, err = fx.apps.ApplyTarget(ctx, fx.student.ID, "not-a-posting")
	require.ErrorIs(t, err, ErrPostingNotFound)
}

func TestApplicationTestHidesAnswers(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)
	app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)

	view, err := fx.apps.Test(ctx, fx.student.ID, app.ID)
	require.NoError(t, err)
	require.Len(t, view.Questions, 2)
	require.Equal(t, "q_0", view.Questions[0].Field)
	require.Equal(t, []string{"class", "banana"}, view.Questions[1].Options)

	other := seedUser(t, fx.db, "eve", models.RoleStudent)
	_, err = fx.apps.Test(ctx, other.ID, app.ID)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestApplicationSubmitScores(t *testing.T) {
	cases := []struct {
		name    string
		answers scoring.Answers
		score   int
		passed  bool
	}{
		{"half passes at default cutoff", scoring.Answers{0: "0", 1: "1"}, 50, true},
		{"all wrong fails", scoring.Answers{0: "1", 1: "1"}, 0, false},
		{"unanswered fails", scoring.Answers{}, 0, false},
		{"garbage counts as wrong", scoring.Answers{0: "zero", 1: "0"}, 50, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newApplicationFixture(t)
			ctx := context.Background()
			posting := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)
			app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
			require.NoError(t, err)

			submission, err := fx.apps.Submit(ctx, fx.student.ID, app.ID, tc.answers)
			require.NoError(t, err)
			require.Equal(t, tc.score, submission.Result.ScorePercent)
			require.Equal(t, tc.passed, submission.Result.Passed)
			require.Equal(t, 50, submission.CutoffPercent)

			var stored models.Application
			require.NoError(t, fx.db.Take(&stored, "id = ?", app.ID).Error)
			require.Equal(t, models.ApplicationScored, stored.Status)
			require.Equal(t, tc.score, stored.ScorePercent)
			require.Equal(t, tc.passed, stored.Passed)
			require.NotNil(t, stored.SubmittedAt)
		})
	}
}

func TestApplicationSubmitZeroQuestionsFails(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, "[]")
	app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)

	submission, err := fx.apps.Submit(ctx, fx.student.ID, app.ID, scoring.Answers{})
	require.NoError(t, err)
	require.Zero(t, submission.Result.ScorePercent)
	require.False(t, submission.Result.Passed)
}

func TestApplicationSubmitOnlyOnce(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)
	app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)

	_, err = fx.apps.Submit(ctx, fx.student.ID, app.ID, scoring.Answers{0: "1", 1: "1"})
	require.NoError(t, err)

	_, err = fx.apps.Submit(ctx, fx.student.ID, app.ID, scoring.Answers{0: "0", 1: "0"})
	require.ErrorIs(t, err, ErrTestAlreadySubmitted)
	_, err = fx.apps.Test(ctx, fx.student.ID, app.ID)
	require.ErrorIs(t, err, ErrTestAlreadySubmitted)

	var stored models.Application
	require.NoError(t, fx.db.Take(&stored, "id = ?", app.ID).Error)
	require.Zero(t, stored.ScorePercent)
}

func TestApplicationUploadResume(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)
	app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)

	_, err = fx.apps.UploadResume(ctx, fx.student.ID, app.ID, pdfUpload("cv.pdf"))
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = fx.apps.Submit(ctx, fx.student.ID, app.ID, scoring.Answers{0: "0", 1: "0"})
	require.NoError(t, err)

	_, err = fx.apps.UploadResume(ctx, fx.student.ID, app.ID, &ResumeUpload{})
	require.ErrorIs(t, err, ErrNoFileSelected)

	updated, err := fx.apps.UploadResume(ctx, fx.student.ID, app.ID, pdfUpload("My CV.pdf"))
	require.NoError(t, err)
	require.True(t, updated.HasResume())
	name := *updated.ResumeFilename
	require.True(t, strings.HasPrefix(name, fx.student.ID+"_"), name)
	require.True(t, strings.HasSuffix(name, "My_CV.pdf"), name)

	object, err := fx.apps.OpenResume(ctx, fx.company.ID, name)
	require.NoError(t, err)
	body, err := io.ReadAll(object)
	require.NoError(t, err)
	require.NoError(t, object.Close())
	require.Equal(t, "%PDF-1.4 resume", string(body))

	_, err = fx.apps.OpenResume(ctx, fx.student.ID, name)
	require.NoError(t, err)

	stranger := seedUser(t, fx.db, "eve", models.RoleStudent)
	_, err = fx.apps.OpenResume(ctx, stranger.ID, name)
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = fx.apps.OpenResume(ctx, fx.company.ID, "../etc/passwd")
	require.ErrorIs(t, err, ErrResumeNotFound)
}

func TestApplicationUploadResumeTooLarge(t *testing.T) {
	fx := newApplicationFixture(t, WithMaxUploadBytes(4))
	ctx := context.Background()
	posting := seedPosting(t, fx.postings, fx.company.ID, "[]")
	app, err := fx.apps.Apply(ctx, fx.student.ID, posting.ID)
	require.NoError(t, err)
	require.NoError(t, fx.db.Model(&models.Application{}).Where("id = ?", app.ID).Update("passed", true).Error)

	_, err = fx.apps.UploadResume(ctx, fx.student.ID, app.ID, pdfUpload("cv.pdf"))
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestApplicationDashboard(t *testing.T) {
	fx := newApplicationFixture(t)
	ctx := context.Background()
	applied := seedPosting(t, fx.postings, fx.company.ID, twoQuestionTest)
	seedPosting(t, fx.postings, fx.company.ID, "[]")

	_, err := fx.apps.Apply(ctx, fx.student.ID, applied.ID)
	require.NoError(t, err)

	dashboard, err := fx.apps.Dashboard(ctx, fx.student.ID)
	require.NoError(t, err)
	require.Len(t, dashboard.Postings, 2)
	require.Equal(t, []string{applied.ID}, dashboard.AppliedIDs)
	require.Len(t, dashboard.Applications, 1)
	require.NotNil(t, dashboard.Applications[0].Internship)
}

package handlers_test

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internhub/internal/handlers/testutil"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/pkg/flash"
)

type studentFixture struct {
	env     *testutil.Env
	company *testutil.Client
	student *testutil.Client
	posting postingPayload
}

func newStudentFixture(t *testing.T, opts ...testutil.EnvOption) *studentFixture {
	t.Helper()
	env := testutil.NewEnv(t, opts...)
	env.CreateUser("acme", "pw", models.RoleCompany)
	env.CreateUser("dave", "pw", models.RoleStudent)

	company := env.Login("acme", "pw")
	return &studentFixture{
		env:     env,
		company: company,
		student: env.Login("dave", "pw"),
		posting: createPosting(t, company, "Backend Intern", "50", twoQuestionTest),
	}
}

// apply starts an application and returns its id.
func (f *studentFixture) apply(t *testing.T) string {
	t.Helper()
	w := f.student.PostForm("/internship/"+f.posting.ID+"/apply", nil)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/test/"), location)
	return strings.TrimPrefix(location, "/test/")
}

func (f *studentFixture) pass(t *testing.T, appID string) {
	t.Helper()
	w := f.student.PostForm("/test/"+appID, url.Values{"q_0": {"0"}, "q_1": {"0"}})
	testutil.RequireRedirect(t, w, "/upload_resume/"+appID)
}

func resumeFile(name string) *testutil.FilePart {
	return &testutil.FilePart{Field: "resume", Filename: name, Content: []byte("%PDF-1.4 resume")}
}

func TestStudentHandler_ApplyOnce(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)
	require.NotEmpty(t, appID)

	w := f.student.PostForm("/internship/"+f.posting.ID+"/apply", nil)
	msg := testutil.RequireRedirect(t, w, "/student")
	require.Equal(t, flash.Info, msg.Category)
	require.Equal(t, "You have already applied or attempted this internship", msg.Message)

	var count int64
	require.NoError(t, f.env.DB.Model(&models.Application{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestStudentHandler_ApplyPageOnlyConfirms(t *testing.T) {
	f := newStudentFixture(t, testutil.WithCSRF())

	w := f.student.Get("/internship/" + f.posting.ID + "/apply")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var data struct {
		Posting   postingPayload `json:"posting"`
		CSRFToken string         `json:"csrf_token"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	require.Equal(t, f.posting.ID, data.Posting.ID)
	require.Equal(t, "Backend Intern", data.Posting.Title)
	require.NotEmpty(t, data.CSRFToken)

	var count int64
	require.NoError(t, f.env.DB.Model(&models.Application{}).Count(&count).Error)
	require.Zero(t, count)

	appID := f.apply(t)
	require.NotEmpty(t, appID)

	w = f.student.Get("/internship/" + f.posting.ID + "/apply")
	msg := testutil.RequireRedirect(t, w, "/student")
	require.Equal(t, flash.Info, msg.Category)
}

func TestStudentHandler_ApplyUnknownPosting(t *testing.T) {
	f := newStudentFixture(t)
	w := f.student.PostForm("/internship/not-a-posting/apply", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandler_TestPageHidesAnswers(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)

	w := f.student.Get("/test/" + appID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotContains(t, w.Body.String(), `"ans"`)

	resp := testutil.DecodeResponse(t, w)
	var data struct {
		Questions []map[string]any `json:"questions"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	require.Len(t, data.Questions, 2)
}

func TestStudentHandler_SubmitPass(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)

	w := f.student.PostForm("/test/"+appID, url.Values{"q_0": {"0"}, "q_1": {"1"}})
	msg := testutil.RequireRedirect(t, w, "/upload_resume/"+appID)
	require.Equal(t, flash.Success, msg.Category)
	require.Equal(t, "Congrats! You passed the test (50%). Please upload your resume.", msg.Message)

	// A second submission is refused and the score stands.
	w = f.student.PostForm("/test/"+appID, url.Values{"q_0": {"1"}, "q_1": {"1"}})
	msg = testutil.RequireRedirect(t, w, "/student")
	require.Equal(t, flash.Info, msg.Category)

	var app models.Application
	require.NoError(t, f.env.DB.First(&app, "id = ?", appID).Error)
	require.Equal(t, 50, app.ScorePercent)
	require.True(t, app.Passed)
}

func TestStudentHandler_SubmitFail(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)

	w := f.student.PostForm("/test/"+appID, url.Values{"q_0": {"1"}, "q_1": {"1"}})
	msg := testutil.RequireRedirect(t, w, "/student")
	require.Equal(t, flash.Warning, msg.Category)
	require.Equal(t, "You did not pass the test (0%). Required: 50%.", msg.Message)

	msg = testutil.RequireRedirect(t, f.student.Get("/upload_resume/"+appID), "/student")
	require.Equal(t, "You must pass the test first", msg.Message)

	w = f.student.PostMultipart("/upload_resume/"+appID, nil, resumeFile("cv.pdf"))
	msg = testutil.RequireRedirect(t, w, "/student")
	require.Equal(t, "You must pass the test first", msg.Message)
}

func TestStudentHandler_OtherStudentCannotTakeTest(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)

	f.env.CreateUser("mallory", "pw", models.RoleStudent)
	mallory := f.env.Login("mallory", "pw")

	msg := testutil.RequireRedirect(t, mallory.Get("/test/"+appID), "/")
	require.Equal(t, "Access denied", msg.Message)
	msg = testutil.RequireRedirect(t, mallory.PostForm("/test/"+appID, url.Values{"q_0": {"0"}}), "/")
	require.Equal(t, "Access denied", msg.Message)
}

func TestStudentHandler_UploadResume(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)
	f.pass(t, appID)

	page := f.student.Get("/upload_resume/" + appID)
	require.Equal(t, http.StatusOK, page.Code, page.Body.String())

	msg := testutil.RequireRedirect(t, f.student.PostMultipart("/upload_resume/"+appID, nil, nil), "/upload_resume/"+appID)
	require.Equal(t, "No file selected", msg.Message)

	w := f.student.PostMultipart("/upload_resume/"+appID, nil, resumeFile("../My CV.pdf"))
	msg = testutil.RequireRedirect(t, w, "/student")
	require.Equal(t, flash.Success, msg.Category)
	require.Equal(t, "Resume uploaded successfully!", msg.Message)

	resp := testutil.DecodeResponse(t, f.student.Get("/student"))
	var dashboard struct {
		Applications []struct {
			ID        string `json:"id"`
			HasResume bool   `json:"has_resume"`
			ResumeURL string `json:"resume_url"`
		} `json:"applications"`
	}
	testutil.DecodeInto(t, resp.Data, &dashboard)
	require.Len(t, dashboard.Applications, 1)
	require.True(t, dashboard.Applications[0].HasResume)
	resumeURL := dashboard.Applications[0].ResumeURL
	require.True(t, strings.HasPrefix(resumeURL, "/uploads/"), resumeURL)
	require.NotContains(t, resumeURL, "..")

	// The student and the owning company can fetch the file.
	for _, client := range []*testutil.Client{f.student, f.company} {
		file := client.Get(resumeURL)
		require.Equal(t, http.StatusOK, file.Code, file.Body.String())
		require.True(t, bytes.Equal([]byte("%PDF-1.4 resume"), file.Body.Bytes()))
		require.Equal(t, "application/pdf", file.Header().Get("Content-Type"))
		require.True(t, strings.HasPrefix(file.Header().Get("Content-Disposition"), "inline;"))
	}

	applicants := testutil.DecodeResponse(t, f.company.Get("/company/"+f.posting.ID+"/resumes"))
	var ranked struct {
		Applicants []struct {
			Student      string `json:"student"`
			ScorePercent int    `json:"score_percent"`
			ResumeURL    string `json:"resume_url"`
		} `json:"applicants"`
	}
	testutil.DecodeInto(t, applicants.Data, &ranked)
	require.Len(t, ranked.Applicants, 1)
	require.Equal(t, "dave", ranked.Applicants[0].Student)
	require.Equal(t, 100, ranked.Applicants[0].ScorePercent)
	require.Equal(t, resumeURL, ranked.Applicants[0].ResumeURL)

	// Other users cannot.
	f.env.CreateUser("globex", "pw", models.RoleCompany)
	globex := f.env.Login("globex", "pw")
	require.Equal(t, http.StatusForbidden, globex.Get(resumeURL).Code)

	require.Equal(t, http.StatusNotFound, f.student.Get("/uploads/missing.pdf").Code)
	testutil.RequireRedirect(t, f.env.NewClient().Get(resumeURL), "/login")
}

func TestStudentHandler_UploadedMarkupIsServedAsDownload(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)
	f.pass(t, appID)

	page := []byte("<!DOCTYPE html><html><body><script>document.cookie</script></body></html>")
	upload := &testutil.FilePart{Field: "resume", Filename: "cv.html", Content: page}
	testutil.RequireRedirect(t, f.student.PostMultipart("/upload_resume/"+appID, nil, upload), "/student")

	resp := testutil.DecodeResponse(t, f.student.Get("/student"))
	var dashboard struct {
		Applications []struct {
			ResumeURL string `json:"resume_url"`
		} `json:"applications"`
	}
	testutil.DecodeInto(t, resp.Data, &dashboard)
	require.Len(t, dashboard.Applications, 1)

	file := f.company.Get(dashboard.Applications[0].ResumeURL)
	require.Equal(t, http.StatusOK, file.Code, file.Body.String())
	require.Equal(t, "application/octet-stream", file.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(file.Header().Get("Content-Disposition"), "attachment;"))
	require.Equal(t, page, file.Body.Bytes())
}

func TestStudentHandler_UploadTooLarge(t *testing.T) {
	f := newStudentFixture(t, testutil.WithMaxUploadBytes(16))
	appID := f.apply(t)
	f.pass(t, appID)

	big := &testutil.FilePart{Field: "resume", Filename: "cv.pdf", Content: bytes.Repeat([]byte("a"), 64)}
	msg := testutil.RequireRedirect(t, f.student.PostMultipart("/upload_resume/"+appID, nil, big), "/upload_resume/"+appID)
	require.Equal(t, flash.Danger, msg.Category)
	require.Equal(t, "File is too large", msg.Message)
}

func TestStudentHandler_Dashboard(t *testing.T) {
	f := newStudentFixture(t)
	appID := f.apply(t)

	resp := testutil.DecodeResponse(t, f.student.Get("/student"))
	var data struct {
		Postings     []postingPayload `json:"postings"`
		AppliedIDs   []string         `json:"applied_posting_ids"`
		Applications []struct {
			ID       string `json:"id"`
			NextStep string `json:"next_step"`
			Status   string `json:"status"`
		} `json:"applications"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	require.Len(t, data.Postings, 1)
	require.Equal(t, []string{f.posting.ID}, data.AppliedIDs)
	require.Len(t, data.Applications, 1)
	require.Equal(t, appID, data.Applications[0].ID)
	require.Equal(t, "/test/"+appID, data.Applications[0].NextStep)
	require.Equal(t, models.ApplicationAttempted, data.Applications[0].Status)
}

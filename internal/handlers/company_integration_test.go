package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internhub/internal/handlers/testutil"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/pkg/flash"
)

const twoQuestionTest = `[{"q":"What is OOP?","options":["Object Oriented Programming","Other"],"ans":0},` +
	`{"q":"Java keyword?","options":["class","banana"],"ans":0}]`

type postingPayload struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	CutoffPercent int    `json:"cutoff_percent"`
	QuestionCount int    `json:"question_count"`
	Company       string `json:"company"`
}

// createPosting posts through the company form and returns the new posting.
func createPosting(t *testing.T, company *testutil.Client, title, cutoff, definition string) postingPayload {
	t.Helper()

	w := company.PostForm("/company/new", url.Values{
		"title":          {title},
		"description":    {"Summer role"},
		"cutoff_percent": {cutoff},
		"test_json":      {definition},
	})
	msg := testutil.RequireRedirect(t, w, "/company")
	require.Equal(t, "Internship posted!", msg.Message)

	resp := testutil.DecodeResponse(t, company.Get("/company"))
	var data struct {
		Postings []postingPayload `json:"postings"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	for _, p := range data.Postings {
		if p.Title == title {
			return p
		}
	}
	t.Fatalf("posting %q not listed", title)
	return postingPayload{}
}

func TestCompanyHandler_CreatePosting(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("acme", "pw", models.RoleCompany)
	company := env.Login("acme", "pw")

	page := testutil.DecodeResponse(t, company.Get("/company/new"))
	var form struct {
		Example       string `json:"example"`
		CutoffPercent int    `json:"cutoff_percent"`
	}
	testutil.DecodeInto(t, page.Data, &form)
	require.Contains(t, form.Example, `"ans"`)
	require.Equal(t, models.DefaultCutoffPercent, form.CutoffPercent)

	posting := createPosting(t, company, "Backend Intern", "50", twoQuestionTest)
	require.Equal(t, 50, posting.CutoffPercent)
	require.Equal(t, 2, posting.QuestionCount)

	home := testutil.DecodeResponse(t, env.NewClient().Get("/"))
	var listed struct {
		Postings []postingPayload `json:"postings"`
	}
	testutil.DecodeInto(t, home.Data, &listed)
	require.Len(t, listed.Postings, 1)
	require.Equal(t, "acme", listed.Postings[0].Company)
}

func TestCompanyHandler_RejectsInvalidInput(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("acme", "pw", models.RoleCompany)
	company := env.Login("acme", "pw")

	cases := map[string]url.Values{
		"invalid json":   {"title": {"A"}, "test_json": {"not json"}},
		"not a list":     {"title": {"A"}, "test_json": {`{"q":"x"}`}},
		"cutoff too big": {"title": {"A"}, "cutoff_percent": {"101"}, "test_json": {twoQuestionTest}},
		"cutoff garbage": {"title": {"A"}, "cutoff_percent": {"abc"}, "test_json": {twoQuestionTest}},
		"missing title":  {"test_json": {twoQuestionTest}},
	}
	for name, form := range cases {
		t.Run(name, func(t *testing.T) {
			msg := testutil.RequireRedirect(t, company.PostForm("/company/new", form), "/company/new")
			require.NotNil(t, msg)
			require.Equal(t, flash.Danger, msg.Category)
		})
	}

	var count int64
	require.NoError(t, env.DB.Model(&models.Internship{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCompanyHandler_DefaultCutoff(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("acme", "pw", models.RoleCompany)
	company := env.Login("acme", "pw")

	posting := createPosting(t, company, "Frontend Intern", "", twoQuestionTest)
	require.Equal(t, models.DefaultCutoffPercent, posting.CutoffPercent)
}

func TestCompanyHandler_ResumesAccess(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("acme", "pw", models.RoleCompany)
	env.CreateUser("globex", "pw", models.RoleCompany)
	acme := env.Login("acme", "pw")
	globex := env.Login("globex", "pw")

	posting := createPosting(t, acme, "Backend Intern", "50", twoQuestionTest)

	w := acme.Get("/company/" + posting.ID + "/resumes")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	var data struct {
		Applicants []map[string]any `json:"applicants"`
	}
	testutil.DecodeInto(t, resp.Data, &data)
	require.Empty(t, data.Applicants)

	msg := testutil.RequireRedirect(t, globex.Get("/company/"+posting.ID+"/resumes"), "/")
	require.Equal(t, "Access denied", msg.Message)

	missing := acme.Get("/company/7c6a3a52-1f7e-4a43-b6b4-2a5a0f1d9e10/resumes")
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, "NOT_FOUND", testutil.DecodeResponse(t, missing).Error.Code)
}

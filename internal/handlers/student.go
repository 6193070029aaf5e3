package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/scoring"
	"github.com/charlesng35/internhub/internal/services"
	appErrors "github.com/charlesng35/internhub/pkg/errors"
	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/response"
)

// multipartOverhead leaves room for form boundaries and other fields.
const multipartOverhead = 1 << 20

// StudentHandler serves the apply, test and resume flow.
type StudentHandler struct {
	apps *services.ApplicationService
}

// NewStudentHandler constructs a StudentHandler.
func NewStudentHandler(apps *services.ApplicationService) *StudentHandler {
	return &StudentHandler{apps: apps}
}

// GET /student
func (h *StudentHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.apps.Dashboard(requestContext(c), identity(c).UserID)
	if err != nil {
		pageError(c, err)
		return
	}

	applications := make([]applicationView, 0, len(dashboard.Applications))
	for _, app := range dashboard.Applications {
		applications = append(applications, newApplicationView(app))
	}
	response.Page(c, gin.H{
		"postings":            newPostingViews(dashboard.Postings),
		"applied_posting_ids": dashboard.AppliedIDs,
		"applications":        applications,
	})
}

// GET /internship/:id/apply
func (h *StudentHandler) ApplyPage(c *gin.Context) {
	posting, err := h.apps.ApplyTarget(requestContext(c), identity(c).UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAlreadyApplied) {
			response.Redirect(c, "/student", flash.Info, services.ErrAlreadyApplied.Message)
			return
		}
		redirectWithError(c, err, "/student")
		return
	}
	response.Page(c, gin.H{
		"posting":    newPostingView(*posting),
		"csrf_token": middleware.CSRFToken(c),
	})
}

// POST /internship/:id/apply
func (h *StudentHandler) Apply(c *gin.Context) {
	app, err := h.apps.Apply(requestContext(c), identity(c).UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrAlreadyApplied) {
			response.Redirect(c, "/student", flash.Info, services.ErrAlreadyApplied.Message)
			return
		}
		redirectWithError(c, err, "/student")
		return
	}
	response.Redirect(c, "/test/"+app.ID, "", "")
}

// GET /test/:id
func (h *StudentHandler) TestPage(c *gin.Context) {
	view, err := h.apps.Test(requestContext(c), identity(c).UserID, c.Param("id"))
	if err != nil {
		h.testError(c, err)
		return
	}
	response.Page(c, gin.H{
		"application_id": view.Application.ID,
		"posting":        newPostingView(*view.Posting),
		"questions":      view.Questions,
		"csrf_token":     middleware.CSRFToken(c),
	})
}

// POST /test/:id
func (h *StudentHandler) SubmitTest(c *gin.Context) {
	ctx := requestContext(c)
	studentID := identity(c).UserID
	applicationID := c.Param("id")

	view, err := h.apps.Test(ctx, studentID, applicationID)
	if err != nil {
		h.testError(c, err)
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		response.Redirect(c, "/test/"+applicationID, flash.Danger, "Invalid form submission")
		return
	}

	answers := scoring.AnswersFromForm(c.Request.PostForm, len(view.Questions))
	submission, err := h.apps.Submit(ctx, studentID, applicationID, answers)
	if err != nil {
		h.testError(c, err)
		return
	}

	percent := submission.Result.ScorePercent
	if submission.Result.Passed {
		response.Redirect(c, "/upload_resume/"+applicationID, flash.Success,
			fmt.Sprintf("Congrats! You passed the test (%d%%). Please upload your resume.", percent))
		return
	}
	response.Redirect(c, "/student", flash.Warning,
		fmt.Sprintf("You did not pass the test (%d%%). Required: %d%%.", percent, submission.CutoffPercent))
}

func (h *StudentHandler) testError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTestAlreadySubmitted):
		response.Redirect(c, "/student", flash.Info, services.ErrTestAlreadySubmitted.Message)
	case errors.Is(err, services.ErrAccessDenied):
		redirectWithError(c, err, "/")
	default:
		redirectWithError(c, err, "/student")
	}
}

// GET /upload_resume/:id
func (h *StudentHandler) UploadPage(c *gin.Context) {
	app, err := h.apps.ResumeTarget(requestContext(c), identity(c).UserID, c.Param("id"))
	if err != nil {
		h.uploadError(c, err)
		return
	}
	response.Page(c, gin.H{
		"application":      newApplicationView(*app),
		"max_upload_bytes": h.apps.MaxUploadBytes(),
		"csrf_token":       middleware.CSRFToken(c),
	})
}

// POST /upload_resume/:id
func (h *StudentHandler) UploadResume(c *gin.Context) {
	applicationID := c.Param("id")
	back := "/upload_resume/" + applicationID
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.apps.MaxUploadBytes()+multipartOverhead)

	var upload *services.ResumeUpload
	header, err := c.FormFile("resume")
	switch {
	case err == nil:
		file, openErr := header.Open()
		if openErr != nil {
			redirectWithError(c, openErr, back)
			return
		}
		defer file.Close()
		upload = resumeUpload(header, file)
	case isBodyTooLarge(err):
		h.uploadError(c, services.ErrFileTooLarge)
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		redirectWithError(c, appErrors.NewBadRequest("Invalid upload"), back)
		return
	}

	if _, err := h.apps.UploadResume(requestContext(c), identity(c).UserID, applicationID, upload); err != nil {
		h.uploadError(c, err)
		return
	}
	response.Redirect(c, "/student", flash.Success, "Resume uploaded successfully!")
}

func (h *StudentHandler) uploadError(c *gin.Context, err error) {
	back := "/upload_resume/" + c.Param("id")
	switch {
	case errors.Is(err, services.ErrNotEligible):
		redirectWithError(c, err, "/student")
	case errors.Is(err, services.ErrAccessDenied):
		redirectWithError(c, err, "/")
	default:
		redirectWithError(c, err, back)
	}
}

func resumeUpload(header *multipart.FileHeader, file io.Reader) *services.ResumeUpload {
	return &services.ResumeUpload{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/scoring"
	"github.com/charlesng35/internhub/internal/services"
	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/response"
)

// CompanyHandler serves the company dashboard, posting form and applicant list.
type CompanyHandler struct {
	postings *services.PostingService
}

// NewCompanyHandler constructs a CompanyHandler.
func NewCompanyHandler(postings *services.PostingService) *CompanyHandler {
	return &CompanyHandler{postings: postings}
}

type postingForm struct {
	Title          string `form:"title" validate:"required,max=255"`
	Description    string `form:"description"`
	CutoffPercent  string `form:"cutoff_percent"`
	TestDefinition string `form:"test_json"`
}

// GET /company
func (h *CompanyHandler) Dashboard(c *gin.Context) {
	postings, err := h.postings.ListByCompany(requestContext(c), identity(c).UserID)
	if err != nil {
		pageError(c, err)
		return
	}
	response.Page(c, gin.H{"postings": newPostingViews(postings)})
}

// GET /company/new
func (h *CompanyHandler) NewPosting(c *gin.Context) {
	example, _ := json.MarshalIndent(scoring.ExampleDefinition(), "", "  ")
	response.Page(c, gin.H{
		"example":        string(example),
		"cutoff_percent": models.DefaultCutoffPercent,
		"csrf_token":     middleware.CSRFToken(c),
	})
}

// POST /company/new
func (h *CompanyHandler) CreatePosting(c *gin.Context) {
	var form postingForm
	if !bindAndValidate(c, &form, "/company/new") {
		return
	}

	input := services.CreatePostingInput{
		Title:          form.Title,
		Description:    form.Description,
		TestDefinition: form.TestDefinition,
	}
	if raw := strings.TrimSpace(form.CutoffPercent); raw != "" {
		cutoff, err := strconv.Atoi(raw)
		if err != nil {
			redirectWithError(c, services.ErrInvalidCutoff, "/company/new")
			return
		}
		input.CutoffPercent = &cutoff
	}

	if _, err := h.postings.Create(requestContext(c), identity(c).UserID, input); err != nil {
		redirectWithError(c, err, "/company/new")
		return
	}
	response.Redirect(c, "/company", flash.Success, "Internship posted!")
}

// GET /company/:id/resumes
func (h *CompanyHandler) Resumes(c *gin.Context) {
	posting, entries, err := h.postings.Resumes(requestContext(c), identity(c).UserID, c.Param("id"))
	if err != nil {
		redirectWithError(c, err, "/")
		return
	}
	response.Page(c, gin.H{
		"posting":    newPostingView(*posting),
		"applicants": newApplicantViews(entries),
	})
}

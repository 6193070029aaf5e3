package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/services"
	"github.com/charlesng35/internhub/pkg/response"
)

// HomeHandler serves the public posting list.
type HomeHandler struct {
	postings *services.PostingService
	users    *services.UserService
}

// NewHomeHandler constructs a HomeHandler.
func NewHomeHandler(postings *services.PostingService, users *services.UserService) *HomeHandler {
	return &HomeHandler{postings: postings, users: users}
}

// GET /
func (h *HomeHandler) Index(c *gin.Context) {
	ctx := requestContext(c)
	postings, err := h.postings.List(ctx)
	if err != nil {
		pageError(c, err)
		return
	}

	data := gin.H{"postings": newPostingViews(postings)}
	if id, ok := middleware.IdentityFrom(c); ok {
		if user, err := h.users.GetByID(ctx, id.UserID); err == nil {
			data["user"] = newUserView(user)
		}
	}
	response.Page(c, data)
}

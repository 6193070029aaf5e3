package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/handlers"
	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/models"
)

func registerCompanyRoutes(r *gin.Engine, handler *handlers.CompanyHandler) {
	company := r.Group("/company")
	company.Use(middleware.RequireRole(models.RoleCompany))
	{
		company.GET("", handler.Dashboard)
		company.GET("/new", handler.NewPosting)
		company.POST("/new", handler.CreatePosting)
		company.GET("/:id/resumes", handler.Resumes)
	}
}

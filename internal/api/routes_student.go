package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/handlers"
	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/models"
)

func registerStudentRoutes(r *gin.Engine, handler *handlers.StudentHandler) {
	student := r.Group("")
	student.Use(middleware.RequireRole(models.RoleStudent))
	{
		student.GET("/student", handler.Dashboard)
		student.GET("/internship/:id/apply", handler.ApplyPage)
		student.POST("/internship/:id/apply", handler.Apply)
		student.GET("/test/:id", handler.TestPage)
		student.POST("/test/:id", handler.SubmitTest)
		student.GET("/upload_resume/:id", handler.UploadPage)
		student.POST("/upload_resume/:id", handler.UploadResume)
	}
}

func registerUploadRoutes(r *gin.Engine, handler *handlers.UploadHandler) {
	r.GET("/uploads/:filename", middleware.RequireLogin(), handler.Serve)
}

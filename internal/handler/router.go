package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/middleware"
	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth        *AuthHandler
	Courses     *CourseHandler
	Drafts      *DraftHandler
	Mentors     *MentorHandler
	Enrollments *EnrollmentHandler
	Students    *StudentHandler
	Imports     *ImportHandler
	Reports     *ReportHandler
	Dashboard   *DashboardHandler
	Metrics     *MetricsHandler

	Tokens middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// Register mounts every API route on group. Reads need a valid token; mutations also need an
// editor role.
func (r Routes) Register(group *gin.RouterGroup) {
	auth := group.Group("/auth")
	auth.POST("/login", r.Auth.Login)
	auth.POST("/refresh", r.Auth.Refresh)

	secured := group.Group("")
	secured.Use(middleware.JWT(r.Tokens))
	editor := middleware.RequireRoles(middleware.EditorRoles...)

	secured.POST("/auth/logout", r.Auth.Logout)
	secured.GET("/auth/me", r.Auth.Me)

	secured.GET("/dashboard", r.Dashboard.Summary)
	secured.GET("/system/metrics", middleware.RequireRoles(models.RoleSuperAdmin), r.Metrics.System)

	courses := secured.Group("/courses")
	courses.GET("", r.Courses.List)
	courses.POST("", editor, r.Courses.Create)
	courses.GET("/:id", r.Courses.Get)
	courses.PUT("/:id", editor, r.Courses.Update)
	courses.DELETE("/:id", editor, r.Courses.Delete)
	courses.POST("/:id/complete", editor, r.Courses.Complete)
	courses.GET("/:id/costs", r.Courses.Costs)
	courses.PUT("/:id/costs", editor, r.Mentors.UpdateCosts)
	courses.GET("/:id/comments", r.Courses.ListComments)
	courses.POST("/:id/comments", r.Courses.AddComment)

	courses.GET("/:id/draft", r.Drafts.Get)
	courses.PUT("/:id/draft", editor, r.Drafts.Save)
	courses.POST("/:id/approve", editor, r.Drafts.Approve)

	courses.POST("/:id/mentors", editor, r.Mentors.Assign)
	courses.PUT("/:id/mentors/:ref", editor, r.Mentors.Update)
	courses.DELETE("/:id/mentors/:ref", editor, r.Mentors.Remove)

	courses.GET("/:id/enrollments/sections", r.Enrollments.Sections)
	courses.POST("/:id/imports/enrollments", editor,
		middleware.Audit(r.Audit, r.Logger, models.AuditActionImportUpload, "course"), r.Imports.UploadEnrollments)
	courses.POST("/:id/imports/attendance", editor,
		middleware.Audit(r.Audit, r.Logger, models.AuditActionImportUpload, "course"), r.Imports.UploadAttendance)
	courses.GET("/:id/report",
		middleware.Audit(r.Audit, r.Logger, models.AuditActionReportDownload, "course"), r.Reports.Download)

	secured.GET("/imports/:id", r.Imports.Get)

	mentors := secured.Group("/mentors")
	mentors.GET("", r.Mentors.List)
	mentors.POST("", editor, r.Mentors.Create)

	students := secured.Group("/students")
	students.GET("", r.Students.List)
	students.GET("/:id", r.Students.Get)
	students.POST("", editor, r.Students.Create)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", r.Enrollments.List)
	enrollments.POST("", editor, r.Enrollments.Create)
	enrollments.POST("/:id/approve", editor, r.Enrollments.Approve)
	enrollments.POST("/:id/reject", editor, r.Enrollments.Reject)
	enrollments.POST("/:id/withdraw", editor, r.Enrollments.Withdraw)
	enrollments.POST("/:id/reapprove", editor, r.Enrollments.Reapprove)
	enrollments.PUT("/:id/result", editor, r.Enrollments.RecordResult)
}

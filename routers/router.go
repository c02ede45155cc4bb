package routers

import (
	"BriefToPack-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", api.CreateProject)
		v1.GET("/projects", api.ListProjects)
		v1.GET("/projects/:project_id", api.GetProject)
		v1.PUT("/projects/:project_id", api.UpdateProject)
		v1.DELETE("/projects/:project_id", api.DeleteProject)
		v1.POST("/projects/:project_id/brief", api.AttachBrief)
		v1.GET("/projects/:project_id/state", api.GetProjectState)

		v1.POST("/projects/:project_id/generate/concept", api.GenerateConcept)
		v1.POST("/projects/:project_id/generate/screenplays", api.GenerateScreenplays)
		v1.POST("/projects/:project_id/generate/storyboard", api.GenerateStoryboard)
		v1.POST("/projects/:project_id/generate/production", api.GenerateProduction)
		v1.POST("/projects/:project_id/select/screenplay", api.SelectScreenplay)

		v1.GET("/jobs/:job_id", api.GetJob)
		v1.POST("/jobs/:job_id/cancel", api.CancelJob)
		v1.GET("/jobs/:job_id/events", api.JobEvents)
		v1.GET("/jobs/:job_id/ws", api.JobProgressWebSocket)

		v1.GET("/projects/:project_id/export/json", api.ExportProjectJSON)
		v1.GET("/projects/:project_id/export/markdown", api.ExportProjectMarkdown)
		v1.GET("/projects/:project_id/export/zip", api.ExportProjectZip)
		v1.POST("/projects/:project_id/export", api.UploadExport)
	}
	return r
}

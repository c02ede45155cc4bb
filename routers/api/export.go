package api

import (
	"fmt"
	"net/http"
	"time"

	"BriefToPack-server/service"

	"github.com/gin-gonic/gin"
)

// exportInputs resolves the project and state for the export handlers.
func exportInputs(c *gin.Context) (projectID string, ok bool) {
	projectID = c.Param("project_id")
	if _, err := service.PipelineRunner.Projects().Get(projectID); err != nil {
		abortWithError(c, err)
		return "", false
	}
	return projectID, true
}

// ExportProjectJSON returns the full project and artifact document.
func ExportProjectJSON(c *gin.Context) {
	projectID, ok := exportInputs(c)
	if !ok {
		return
	}
	project, _ := service.PipelineRunner.Projects().Get(projectID)
	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	data, err := service.ExportJSON(project, st)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="project_data.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ExportProjectMarkdown returns the production pack document. A pack rendered
// by the pipeline is served as-is; otherwise one is rendered from whatever
// artifacts exist.
func ExportProjectMarkdown(c *gin.Context) {
	projectID, ok := exportInputs(c)
	if !ok {
		return
	}
	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	snap := st.ExportCopy()
	pack := snap.ProductionPack
	if pack == "" {
		pack = service.RenderProductionPack(snap)
	}
	c.Header("Content-Disposition", `attachment; filename="production_pack.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(pack))
}

// ExportProjectZip returns the downloadable handoff bundle.
func ExportProjectZip(c *gin.Context) {
	projectID, ok := exportInputs(c)
	if !ok {
		return
	}
	project, _ := service.PipelineRunner.Projects().Get(projectID)
	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	archive, err := service.BuildZip(project, st)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", project.Name+"_pack.zip"))
	c.Data(http.StatusOK, "application/zip", archive)
}

// UploadExport pushes the zip bundle to object storage and returns a shareable
// presigned URL.
func UploadExport(c *gin.Context) {
	projectID, ok := exportInputs(c)
	if !ok {
		return
	}
	if !service.Store.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is not configured"})
		return
	}
	project, _ := service.PipelineRunner.Projects().Get(projectID)
	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	archive, err := service.BuildZip(project, st)
	if err != nil {
		abortWithError(c, err)
		return
	}

	objectName := fmt.Sprintf("projects/%s/exports/pack_%s.zip", projectID, time.Now().Format("20060102_150405"))
	url, err := service.Store.UploadBytes(c.Request.Context(), objectName, archive, "application/zip")
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": objectName, "url": url})
}

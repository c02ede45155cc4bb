package api

import (
	"errors"
	"log"
	"net/http"

	"BriefToPack-server/models"
	"BriefToPack-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusForError maps service and store errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrProjectNotFound), errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrJobActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownStep):
		return http.StatusBadRequest
	}
	var prereq *service.PrereqError
	if errors.As(err, &prereq) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// CreateProject registers a new ad project, optionally with its brief inline.
func CreateProject(c *gin.Context) {
	var req struct {
		Name       string                `json:"name"`
		Client     string                `json:"client"`
		BudgetBand string                `json:"budget_band"`
		Tags       []string              `json:"tags"`
		Brief      *models.CreativeBrief `json:"brief"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	project := models.Project{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Client:     req.Client,
		BudgetBand: req.BudgetBand,
		Tags:       req.Tags,
	}
	if req.Brief != nil {
		if err := req.Brief.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid brief: " + err.Error()})
			return
		}
		project.Brief = req.Brief
	}
	service.PipelineRunner.Projects().Create(&project)

	c.JSON(http.StatusOK, gin.H{"project": project})
}

func ListProjects(c *gin.Context) {
	projects := service.PipelineRunner.Projects().List()
	c.JSON(http.StatusOK, gin.H{"projects": projects, "total": len(projects)})
}

// GetProject returns the project record, artifact presence and recent jobs.
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := service.PipelineRunner.Projects().Get(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	jobs := service.PipelineRunner.Jobs().ListForProject(projectID)
	if len(jobs) > 5 {
		jobs = jobs[:5]
	}

	c.JSON(http.StatusOK, gin.H{
		"project":     project,
		"artifacts":   st.ArtifactPresence(),
		"recent_jobs": jobs,
	})
}

// UpdateProject patches mutable project fields. Brief changes go through the
// dedicated brief endpoint so they can refresh the pipeline state too.
func UpdateProject(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Name       string   `json:"name"`
		Client     string   `json:"client"`
		Status     string   `json:"status"`
		BudgetBand string   `json:"budget_band"`
		Tags       []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := service.PipelineRunner.Projects().Update(projectID, func(p *models.Project) {
		if req.Name != "" {
			p.Name = req.Name
		}
		if req.Client != "" {
			p.Client = req.Client
		}
		if req.Status != "" {
			p.Status = req.Status
		}
		if req.BudgetBand != "" {
			p.BudgetBand = req.BudgetBand
		}
		if req.Tags != nil {
			p.Tags = req.Tags
		}
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	project, err := service.PipelineRunner.Projects().Get(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// DeleteProject cancels any running job, then removes the project and its
// pipeline state.
func DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")

	if jobID, busy := service.PipelineRunner.Jobs().ActiveForProject(projectID); busy {
		if _, err := service.PipelineRunner.Cancel(jobID); err != nil {
			log.Printf("cancel job %s before delete failed: %v", jobID, err)
		}
	}
	if err := service.PipelineRunner.Projects().Delete(projectID); err != nil {
		abortWithError(c, err)
		return
	}
	service.PipelineRunner.DropState(projectID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "project deleted"})
}

// AttachBrief sets or replaces the creative brief. Rejected while a generation
// job is running, since prompts build on the brief.
func AttachBrief(c *gin.Context) {
	projectID := c.Param("project_id")
	var brief models.CreativeBrief
	if err := c.ShouldBindJSON(&brief); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := brief.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid brief: " + err.Error()})
		return
	}

	if err := service.PipelineRunner.ReplaceBrief(projectID, brief); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": projectID, "brief": brief})
}

// SelectScreenplay picks the winning variant synchronously.
func SelectScreenplay(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Variant int `json:"variant"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Variant != 1 && req.Variant != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variant must be 1 or 2"})
		return
	}

	if err := service.PipelineRunner.SelectScreenplay(c.Request.Context(), projectID, req.Variant); err != nil {
		abortWithError(c, err)
		return
	}

	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	snap := st.ExportCopy()
	resp := gin.H{"project_id": projectID, "selected_variant": req.Variant}
	if snap.ScreenplayWinner != nil {
		resp["winner"] = snap.ScreenplayWinner.Label
		resp["scores"] = snap.ScreenplayWinner.Scores
	}
	c.JSON(http.StatusOK, resp)
}

// GetProjectState reports artifact presence and the status log.
func GetProjectState(c *gin.Context) {
	projectID := c.Param("project_id")
	st, err := service.PipelineRunner.StateFor(projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"artifacts":  st.ArtifactPresence(),
		"status_log": st.StatusSnapshot(),
	})
}

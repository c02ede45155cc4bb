package api

import (
	"net/http"

	"BriefToPack-server/models"
	"BriefToPack-server/service"

	"github.com/gin-gonic/gin"
)

// triggerStep accepts a generation request and hands the job to the queue.
// Prerequisite violations come back 400, a busy project 409.
func triggerStep(c *gin.Context, step string) {
	projectID := c.Param("project_id")
	job, err := service.PipelineRunner.StartStep(projectID, step)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":         job.ID,
		"step":           job.Step,
		"status":         job.Status,
		"estimated_time": job.EstimatedTime,
		"estimated_cost": job.EstimatedCost,
	})
}

func GenerateConcept(c *gin.Context) { triggerStep(c, models.JobStepConcept) }

func GenerateScreenplays(c *gin.Context) { triggerStep(c, models.JobStepScreenplays) }

func GenerateStoryboard(c *gin.Context) { triggerStep(c, models.JobStepStoryboard) }

func GenerateProduction(c *gin.Context) { triggerStep(c, models.JobStepProduction) }

package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"BriefToPack-server/config"

	"github.com/hibiken/asynq"
)

const (
	TypeGenerationJob = "pipeline:generate"
)

type JobPayload struct {
	JobID string `json:"job_id"`
}

var QueueClient *asynq.Client

func InitQueue() {
	QueueClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
	})
}

// EnqueueGenerationJob hands a job id to the worker pool. Retries are disabled:
// the gateway already retries transient failures internally, and replaying a
// half-merged pipeline run would regenerate artifacts the user may have kept.
func EnqueueGenerationJob(jobID string) error {
	payload, err := json.Marshal(JobPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeGenerationJob, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	log.Printf("[Queue] job enqueued: job_id=%s task_id=%s", jobID, info.ID)
	return nil
}

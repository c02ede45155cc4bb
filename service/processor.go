package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"BriefToPack-server/config"

	"github.com/hibiken/asynq"
)

// Processor consumes generation jobs from the queue and drives the runner.
// Business failures are recorded on the job itself, so handler errors only
// signal payload problems and never trigger a redelivery.
type Processor struct {
	runner *Runner
	srv    *asynq.Server
}

func NewProcessor(runner *Runner) *Processor {
	return &Processor{runner: runner}
}

// StartProcessor launches the queue consumer in the background.
func (p *Processor) StartProcessor(concurrency int) {
	p.srv = asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerationJob, p.HandleGenerationJob)

	log.Printf("starting job processor with concurrency %d...", concurrency)
	go func() {
		if err := p.srv.Run(mux); err != nil {
			log.Fatalf("could not run job processor: %v", err)
		}
	}()
}

// Shutdown stops the consumer, waiting for in-flight handlers.
func (p *Processor) Shutdown() {
	if p.srv != nil {
		p.srv.Shutdown()
	}
}

func (p *Processor) HandleGenerationJob(ctx context.Context, t *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("processing job: %s", payload.JobID)
	if err := p.runner.Execute(ctx, payload.JobID); err != nil {
		// unknown job id: nothing to retry against
		return fmt.Errorf("job %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BriefToPack-server/config"
	"BriefToPack-server/models"
	"BriefToPack-server/routers"
	"BriefToPack-server/service"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

func main() {
	briefPath := flag.String("brief", "", "run the full pipeline for a YAML brief file and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config.InitConfig()

	if *briefPath != "" {
		if err := runBriefFile(*briefPath, logger); err != nil {
			log.Fatalf("pipeline run failed: %v", err)
		}
		return
	}

	fmt.Println("Server starting on port", config.AppConfig.Server.Port)

	service.InitQueue()
	fmt.Println("Queue initialized")

	service.InitMinIO()

	// web mode auto-approves gates; human control points are the selection and
	// review endpoints
	pipeline := newPipeline(service.AutoApprove{}, logger)
	service.InitRunner(pipeline, models.NewProjectStore(), models.NewJobStore(), logger)

	processor := service.NewProcessor(service.PipelineRunner)
	processor.StartProcessor(config.AppConfig.Pipeline.Concurrency)

	r := routers.InitRouter()
	srv := &http.Server{
		Addr:    config.AppConfig.Server.Port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	processor.Shutdown()
}

func newPipeline(decisions service.DecisionProvider, logger *slog.Logger) *service.Pipeline {
	cfg := config.AppConfig
	llm := service.NewLLMClient(cfg.LLM.Endpoint, &service.LLMOptions{
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RetryBudget:     cfg.LLM.RetryBudget,
		BaseDelay:       time.Duration(cfg.LLM.BaseDelaySeconds) * time.Second,
		SoftPromptLimit: cfg.LLM.SoftPromptLimit,
		HardPromptLimit: cfg.LLM.HardPromptLimit,
		MinInterval:     time.Duration(cfg.LLM.RateIntervalMS) * time.Millisecond,
		Logger:          logger,
	})
	image := service.NewImageClient(cfg.Image.Endpoint, &service.ImageOptions{
		APIKey: cfg.Image.APIKey,
		Model:  cfg.Image.Model,
		Logger: logger,
	})
	return service.NewPipeline(llm, image, service.Store, decisions, logger)
}

// runBriefFile executes one interactive end-to-end run: brief in, production
// pack out, gates on the terminal unless auto-approve is configured.
func runBriefFile(path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read brief: %w", err)
	}
	var brief models.CreativeBrief
	if err := yaml.Unmarshal(data, &brief); err != nil {
		return fmt.Errorf("parse brief: %w", err)
	}
	if err := brief.Validate(); err != nil {
		return fmt.Errorf("invalid brief: %w", err)
	}

	var decisions service.DecisionProvider = service.NewTerminalDecisionProvider(os.Stdin, os.Stdout)
	if config.AppConfig.Pipeline.AutoApprove {
		decisions = service.AutoApprove{}
	}
	pipeline := newPipeline(decisions, logger)

	st := models.NewProjectState(uuid.NewString(), brief)
	eng := service.NewEngine(pipeline.FullGraph(), service.WithEngineLogger(logger))
	result, err := eng.Run(context.Background(), st)
	if err != nil {
		return err
	}

	fmt.Println("\nRun log:")
	for _, line := range st.StatusSnapshot() {
		fmt.Println(" ", line)
	}
	if result.Halted {
		fmt.Printf("\nPipeline halted at %s; partial artifacts exported.\n", result.HaltedAt)
	}

	proj := &models.Project{
		ID:     st.ProjectID,
		Name:   brief.Brand + " campaign",
		Status: models.ProjectStatusInProgress,
		Brief:  &brief,
	}
	if st.ArtifactPresence()["production_pack"] {
		proj.Status = models.ProjectStatusApproved
	}
	paths, err := service.ExportToDir(config.AppConfig.Pipeline.OutputDir, proj, st)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println("wrote", p)
	}
	return nil
}

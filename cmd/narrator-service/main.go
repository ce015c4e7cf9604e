// main package for the narrator-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/awsclient"
	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/objectstore"
	"github.com/book-expert/narrator/internal/pipeline"
	"github.com/book-expert/narrator/internal/storage"
	"github.com/book-expert/narrator/internal/synthesis"
	"github.com/book-expert/narrator/internal/transcode"
	"github.com/book-expert/narrator/internal/worker"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "narrator-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Pick up a local .env file when one exists
	envErr := godotenv.Load()

	// 2. Create a temporary logger for the bootstrap process
	bootstrapLog, err := logger.New(os.TempDir(), "narrator-service-bootstrap.log")
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		bootstrapLog.Warn("Failed to read .env file: %v", envErr)
	}

	// 3. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 4. Refuse to start without the AWS connection parameters
	creds, err := config.LoadCredentials(nil)
	if err != nil {
		bootstrapLog.Error("%v", err)

		return fmt.Errorf("failed to load credentials: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 5. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator, err := buildCoordinator(ctx, cfg, creds, finalLog)
	if err != nil {
		finalLog.Error("Failed to build workflows: %v", err)

		return err
	}

	// 6. Connect to NATS and stage the operator inbox
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		finalLog.Error("Failed to connect to NATS: %v", err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		finalLog.Error("Failed to create JetStream context: %v", err)

		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	inbox, err := objectstore.New(jetstreamContext, cfg.NATS.InboxBucket, cfg.InboxTTL())
	if err != nil {
		finalLog.Error("Failed to open inbox: %v", err)

		return fmt.Errorf("failed to open inbox: %w", err)
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.SubjectPrefix, inbox, coordinator, cfg.RequestTimeout(), finalLog,
	)
	if err != nil {
		finalLog.Error("Failed to create worker: %v", err)

		return fmt.Errorf("failed to create worker: %w", err)
	}

	finalLog.System("Narrator service initialized (%s)", creds)

	// 7. Serve until interrupted
	err = natsWorker.Run(ctx)
	if err != nil {
		finalLog.Error("Worker stopped with error: %v", err)

		return fmt.Errorf("worker stopped: %w", err)
	}

	finalLog.System("Narrator service stopped.")

	return nil
}

// buildCoordinator wires the AWS-backed components into the workflows.
func buildCoordinator(
	ctx context.Context,
	cfg *config.Config,
	creds *config.Credentials,
	log *logger.Logger,
) (*pipeline.Coordinator, error) {
	awsConfig, err := awsclient.Load(ctx, creds)
	if err != nil {
		return nil, err
	}

	synthesizer := synthesis.New(polly.NewFromConfig(awsConfig), synthesis.Options{
		TempDir:      cfg.Paths.TempDir,
		MaxTextChars: cfg.Synthesis.MaxTextChars,
		Normalize:    cfg.Synthesis.NormalizeText,
	}, log)

	gateway := storage.NewFromClient(s3.NewFromConfig(awsConfig), log)

	orchestrator := transcode.NewFromConfig(awsConfig, transcode.Options{
		Bucket:               creds.Bucket,
		RoleARN:              creds.MediaConvertRoleARN,
		PollInterval:         cfg.PollInterval(),
		MaxWait:              cfg.MaxWait(),
		StatusUpdateInterval: types.StatusUpdateInterval(cfg.Transcode.StatusUpdateInterval),
		Priority:             cfg.Transcode.Priority,
	}, log)

	return pipeline.New(synthesizer, gateway, orchestrator, pipeline.Options{
		Bucket:        creds.Bucket,
		TempDir:       cfg.Paths.TempDir,
		PresignExpiry: cfg.PresignExpiry(),
	}, log), nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

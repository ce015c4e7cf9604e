// main package for the narrator-client
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/media"
	"github.com/book-expert/narrator/internal/objectstore"
	"github.com/book-expert/narrator/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Flag descriptions.
const (
	flagTextDesc     = "Product details to narrate"
	flagLanguageDesc = "Narration language (English or Chinese)"
	flagAudioDesc    = "MP3 file to merge into the video"
	flagVideoDesc    = "Video file (.mp4) to narrate or merge"
	flagNATSDesc     = "NATS server URL (overrides configuration)"
)

// Flag names.
const (
	flagText     = "text"
	flagLanguage = "language"
	flagAudio    = "audio"
	flagVideo    = "video"
	flagNATS     = "nats"
)

// Error and log messages.
const (
	errNothingToDo       = "Provide --text, --audio with --video, or --text with --video"
	errCannotCombine     = "Cannot combine --audio with --text"
	errAudioNeedsVideo   = "--audio requires --video"
	errFailedToLoadCfg   = "failed to load configuration: %w"
	errFailedToStage     = "failed to stage %s: %w"
	errFailedToRequest   = "request failed: %w"
	logClientInitialized = "Narrator client connected to %s"
	logStaged            = "Staged %s (%s) as %s"
	logFinished          = "Workflow %s finished in %s"
	logDeleteFailed      = "Failed to delete staged file %s: %v"
	defaultLanguage      = "English"
	logFileName          = "narrator-client.log"
)

var (
	errInvalidArguments = errors.New("invalid arguments")
	errRemoteFailure    = errors.New("remote workflow failed")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text     string
	language string
	audio    string
	video    string
	natsURL  string
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags := parseFlags()

	workflow, err := validateArguments(flags)
	if err != nil {
		flag.Usage()

		return err
	}

	clientLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer clientLog.Close()

	cfg, err := config.Load(clientLog)
	if err != nil {
		return fmt.Errorf(errFailedToLoadCfg, err)
	}

	natsURL := cfg.NATS.URL
	if flags.natsURL != "" {
		natsURL = flags.natsURL
	}

	natsConnection, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	inbox, err := objectstore.New(jetstreamContext, cfg.NATS.InboxBucket, cfg.InboxTTL())
	if err != nil {
		return fmt.Errorf("failed to open inbox: %w", err)
	}

	clientLog.Info(logClientInitialized, natsURL)

	ctx := context.Background()

	req, staged, err := buildRequest(ctx, inbox, flags, clientLog)
	defer cleanupStaged(ctx, inbox, staged, clientLog)

	if err != nil {
		return err
	}

	started := time.Now()

	reply, err := sendRequest(natsConnection, worker.Subject(cfg.NATS.SubjectPrefix, workflow), req, cfg.RequestTimeout())
	if err != nil {
		return err
	}

	clientLog.Info(logFinished, workflow, media.FormatDuration(time.Since(started).Seconds()))

	fmt.Println(reply.Message)

	if reply.Failed() {
		return fmt.Errorf("%w: %s", errRemoteFailure, reply.Error)
	}

	return nil
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.language, flagLanguage, defaultLanguage, flagLanguageDesc)
	flag.StringVar(&flags.audio, flagAudio, "", flagAudioDesc)
	flag.StringVar(&flags.video, flagVideo, "", flagVideoDesc)
	flag.StringVar(&flags.natsURL, flagNATS, "", flagNATSDesc)
	flag.Parse()

	return flags
}

// validateArguments maps the flag combination to a workflow subject.
func validateArguments(flags appFlags) (string, error) {
	switch {
	case flags.audio != "" && flags.text != "":
		return "", fmt.Errorf("%w: %s", errInvalidArguments, errCannotCombine)
	case flags.audio != "" && flags.video == "":
		return "", fmt.Errorf("%w: %s", errInvalidArguments, errAudioNeedsVideo)
	case flags.audio != "":
		return worker.SubjectMergeVideo, nil
	case flags.text != "" && flags.video != "":
		return worker.SubjectProcessVideo, nil
	case flags.text != "":
		return worker.SubjectGenerateAudio, nil
	default:
		return "", fmt.Errorf("%w: %s", errInvalidArguments, errNothingToDo)
	}
}

// buildRequest stages the local files and returns the request along with
// every inbox key it created.
func buildRequest(
	ctx context.Context,
	inbox *objectstore.NatsObjectStore,
	flags appFlags,
	clientLog *logger.Logger,
) (*worker.WorkflowRequest, []string, error) {
	req := &worker.WorkflowRequest{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		Text:     flags.text,
		Language: flags.language,
		AudioKey: "",
		VideoKey: "",
	}

	var staged []string

	stage := func(path string, check func(string) (int64, error)) (string, error) {
		size, err := check(path)
		if err != nil {
			return "", err
		}

		key := req.Header.WorkflowID + "/" + media.SanitizeFilename(filepath.Base(path))

		err = inbox.UploadFile(ctx, key, path)
		if err != nil {
			return "", fmt.Errorf(errFailedToStage, path, err)
		}

		staged = append(staged, key)
		clientLog.Info(logStaged, path, media.FormatFileSize(size), key)

		return key, nil
	}

	if flags.audio != "" {
		key, err := stage(flags.audio, media.CheckAudioFile)
		if err != nil {
			return nil, staged, err
		}

		req.AudioKey = key
	}

	if flags.video != "" {
		key, err := stage(flags.video, media.CheckVideoFile)
		if err != nil {
			return nil, staged, err
		}

		req.VideoKey = key
	}

	return req, staged, nil
}

func sendRequest(
	natsConnection *nats.Conn,
	subject string,
	req *worker.WorkflowRequest,
	timeout time.Duration,
) (*worker.WorkflowReply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	msg, err := natsConnection.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf(errFailedToRequest, err)
	}

	var reply worker.WorkflowReply

	err = json.Unmarshal(msg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	return &reply, nil
}

func cleanupStaged(ctx context.Context, inbox *objectstore.NatsObjectStore, staged []string, clientLog *logger.Logger) {
	for _, key := range staged {
		err := inbox.Delete(ctx, key)
		if err != nil {
			clientLog.Warn(logDeleteFailed, key, err)
		}
	}
}

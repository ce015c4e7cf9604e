// Package worker provides the NATS worker that runs operator workflows.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/pipeline"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Operator-facing error prefixes.
const (
	errFmtGenerateAudio = "An error occurred while generating audio: %v"
	errFmtProcessing    = "An error occurred while processing: %v"
	errFmtBadRequest    = "Invalid request: %v"
)

var (
	// ErrUnknownSubject indicates a request on a subject with no workflow.
	ErrUnknownSubject = errors.New("unknown workflow subject")
	// ErrPrefixEmpty indicates a worker configured without a subject prefix.
	ErrPrefixEmpty = errors.New("subject prefix cannot be empty")
)

// Workflows is the pipeline surface the worker drives.
type Workflows interface {
	GenerateAudio(ctx context.Context, text string, language core.Language) (*pipeline.Result, error)
	MergeAudioVideo(ctx context.Context, audio, video io.Reader) (*pipeline.Result, error)
	ProcessVideo(ctx context.Context, text string, language core.Language, video io.Reader) (*pipeline.Result, error)
}

// NatsWorker listens for workflow requests and answers each with a WorkflowReply.
// All requests arrive on one subscription and are handled one at a time.
type NatsWorker struct {
	natsConnection *nats.Conn
	prefix         string
	inbox          core.Inbox
	workflows      Workflows
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. A zero timeout
// leaves each workflow bounded only by the worker's lifetime.
func NewNatsWorker(
	natsConnection *nats.Conn,
	prefix string,
	inbox core.Inbox,
	workflows Workflows,
	timeout time.Duration,
	log *logger.Logger,
) (*NatsWorker, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		prefix:         prefix,
		inbox:          inbox,
		workflows:      workflows,
		timeout:        timeout,
		log:            log,
	}, nil
}

// Subject returns the full subject of a workflow.
func Subject(prefix, workflow string) string {
	return prefix + "." + workflow
}

// Run starts the worker and blocks until ctx is cancelled. Cancelling ctx
// also aborts the workflow in flight.
func (w *NatsWorker) Run(ctx context.Context) error {
	subject := w.prefix + ".>"

	sub, err := w.natsConnection.Subscribe(subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	w.log.System("Listening for workflow requests on %s", subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := w.workflowContext(parent)
	defer cancel()

	var req WorkflowRequest

	err := json.Unmarshal(msg.Data, &req)
	if err != nil {
		w.log.Error("Failed to unmarshal request on %s: %v", msg.Subject, err)
		w.respond(msg, errorReply(req, errFmtBadRequest, err))

		return
	}

	if req.Header.EventID == "" {
		req.Header.EventID = uuid.NewString()
	}

	reply := w.dispatch(ctx, strings.TrimPrefix(msg.Subject, w.prefix+"."), req)
	reply.Header.Timestamp = time.Now()

	w.respond(msg, reply)
}

func (w *NatsWorker) workflowContext(parent context.Context) (context.Context, context.CancelFunc) {
	if w.timeout > 0 {
		return context.WithTimeout(parent, w.timeout)
	}

	return context.WithCancel(parent)
}

func (w *NatsWorker) dispatch(ctx context.Context, workflow string, req WorkflowRequest) *WorkflowReply {
	w.log.Info("Workflow %s started for %s", workflow, req.Header.WorkflowID)

	var (
		result *pipeline.Result
		err    error
		errFmt = errFmtProcessing
	)

	switch workflow {
	case SubjectGenerateAudio:
		errFmt = errFmtGenerateAudio
		result, err = w.generateAudio(ctx, req)
	case SubjectMergeVideo:
		result, err = w.mergeVideo(ctx, req)
	case SubjectProcessVideo:
		result, err = w.processVideo(ctx, req)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownSubject, workflow)
		errFmt = errFmtBadRequest
	}

	if err != nil {
		w.log.Error("Workflow %s failed for %s: %v", workflow, req.Header.WorkflowID, err)

		return errorReply(req, errFmt, err)
	}

	w.log.Info("Workflow %s finished for %s: %s", workflow, req.Header.WorkflowID, result.Key)

	return &WorkflowReply{
		Header:          req.Header,
		Key:             result.Key,
		URL:             result.URL,
		LinkUnavailable: result.LinkUnavailable(),
		Message:         result.Message(),
	}
}

func (w *NatsWorker) generateAudio(ctx context.Context, req WorkflowRequest) (*pipeline.Result, error) {
	language, err := core.ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	return w.workflows.GenerateAudio(ctx, req.Text, language)
}

func (w *NatsWorker) mergeVideo(ctx context.Context, req WorkflowRequest) (*pipeline.Result, error) {
	audio, err := w.openStaged(ctx, req.AudioKey)
	if err != nil {
		return nil, err
	}
	defer closeStaged(audio)

	video, err := w.openStaged(ctx, req.VideoKey)
	if err != nil {
		return nil, err
	}
	defer closeStaged(video)

	return w.workflows.MergeAudioVideo(ctx, audio, video)
}

func (w *NatsWorker) processVideo(ctx context.Context, req WorkflowRequest) (*pipeline.Result, error) {
	language, err := core.ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	video, err := w.openStaged(ctx, req.VideoKey)
	if err != nil {
		return nil, err
	}
	defer closeStaged(video)

	return w.workflows.ProcessVideo(ctx, req.Text, language, video)
}

// openStaged returns a nil reader for an empty key so the pipeline reports
// the missing input itself.
func (w *NatsWorker) openStaged(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, nil
	}

	reader, err := w.inbox.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged file: %w", err)
	}

	return reader, nil
}

func closeStaged(reader io.ReadCloser) {
	if reader != nil {
		_ = reader.Close()
	}
}

// respond marshals and sends the reply.
func (w *NatsWorker) respond(msg *nats.Msg, reply *WorkflowReply) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v", reply.Header.WorkflowID, err)
	}
}

func errorReply(req WorkflowRequest, format string, err error) *WorkflowReply {
	message := fmt.Sprintf(format, err)

	return &WorkflowReply{
		Header:  req.Header,
		Message: message,
		Error:   err.Error(),
	}
}

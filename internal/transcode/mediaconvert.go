// Package transcode merges narration audio into a demo video with AWS Elemental MediaConvert.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/keys"
)

// DefaultPollInterval is the delay between two job status checks.
const DefaultPollInterval = 30 * time.Second

var (
	// ErrNoEndpoint indicates that the account has no MediaConvert endpoint.
	ErrNoEndpoint = errors.New("no mediaconvert endpoint returned")
	// ErrPollTimeout indicates that the job did not finish within the wait ceiling.
	ErrPollTimeout = fmt.Errorf("%w: job did not finish in time", core.ErrTranscode)
	// ErrJobCanceled indicates that the job was cancelled outside this process.
	ErrJobCanceled = fmt.Errorf("%w: job was canceled", core.ErrTranscode)
)

// EndpointAPI discovers the account-specific MediaConvert endpoint.
type EndpointAPI interface {
	DescribeEndpoints(
		ctx context.Context,
		params *mediaconvert.DescribeEndpointsInput,
		optFns ...func(*mediaconvert.Options),
	) (*mediaconvert.DescribeEndpointsOutput, error)
}

// JobAPI submits and inspects jobs on the account endpoint.
type JobAPI interface {
	CreateJob(
		ctx context.Context,
		params *mediaconvert.CreateJobInput,
		optFns ...func(*mediaconvert.Options),
	) (*mediaconvert.CreateJobOutput, error)
	GetJob(
		ctx context.Context,
		params *mediaconvert.GetJobInput,
		optFns ...func(*mediaconvert.Options),
	) (*mediaconvert.GetJobOutput, error)
}

// JobClientFactory builds a JobAPI bound to an endpoint URL.
type JobClientFactory func(endpointURL string) JobAPI

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Options tune an Orchestrator.
type Options struct {
	Bucket               string
	RoleARN              string
	PollInterval         time.Duration
	MaxWait              time.Duration
	StatusUpdateInterval types.StatusUpdateInterval
	Priority             int32
}

// Orchestrator implements core.Transcoder.
type Orchestrator struct {
	endpoints EndpointAPI
	newJobAPI JobClientFactory
	opts      Options
	wait      WaitFunc
	log       *logger.Logger
}

// New creates a new Orchestrator.
func New(endpoints EndpointAPI, newJobAPI JobClientFactory, opts Options, log *logger.Logger) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.StatusUpdateInterval == "" {
		opts.StatusUpdateInterval = types.StatusUpdateIntervalSeconds60
	}

	return &Orchestrator{
		endpoints: endpoints,
		newJobAPI: newJobAPI,
		opts:      opts,
		wait:      sleep,
		log:       log,
	}
}

// NewFromConfig wires an Orchestrator to real MediaConvert clients.
func NewFromConfig(cfg aws.Config, opts Options, log *logger.Logger) *Orchestrator {
	factory := func(endpointURL string) JobAPI {
		return mediaconvert.NewFromConfig(cfg, func(o *mediaconvert.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}

	return New(mediaconvert.NewFromConfig(cfg), factory, opts, log)
}

// WithWait replaces the poll delay, mainly for tests.
func (o *Orchestrator) WithWait(wait WaitFunc) *Orchestrator {
	o.wait = wait

	return o
}

// MergeAudioVideo submits a merge job for two uploaded objects, blocks until
// the job reaches a terminal state and returns the output key.
func (o *Orchestrator) MergeAudioVideo(ctx context.Context, videoKey, audioKey string) (string, error) {
	outputKey, destinationKey := keys.MergeOutput()

	endpointURL, err := o.resolveEndpoint(ctx)
	if err != nil {
		return "", err
	}

	jobs := o.newJobAPI(endpointURL)

	created, err := jobs.CreateJob(ctx, &mediaconvert.CreateJobInput{
		Role:                 aws.String(o.opts.RoleARN),
		Settings:             JobSettings(o.opts.Bucket, videoKey, audioKey, destinationKey),
		UserMetadata:         map[string]string{},
		StatusUpdateInterval: o.opts.StatusUpdateInterval,
		Priority:             aws.Int32(o.opts.Priority),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to create job: %w", core.ErrTranscode, err)
	}

	if created.Job == nil || aws.ToString(created.Job.Id) == "" {
		return "", fmt.Errorf("%w: create job returned no job id", core.ErrTranscode)
	}

	jobID := aws.ToString(created.Job.Id)
	o.log.Info("Submitted merge job %s (video=%s audio=%s)", jobID, videoKey, audioKey)

	err = o.awaitCompletion(ctx, jobs, jobID)
	if err != nil {
		return "", err
	}

	o.log.Info("Merge job %s complete: %s", jobID, outputKey)

	return outputKey, nil
}

func (o *Orchestrator) resolveEndpoint(ctx context.Context) (string, error) {
	out, err := o.endpoints.DescribeEndpoints(ctx, &mediaconvert.DescribeEndpointsInput{})
	if err != nil {
		return "", fmt.Errorf("%w: failed to describe endpoints: %w", core.ErrTranscode, err)
	}

	if len(out.Endpoints) == 0 || aws.ToString(out.Endpoints[0].Url) == "" {
		return "", fmt.Errorf("%w: %w", core.ErrTranscode, ErrNoEndpoint)
	}

	return aws.ToString(out.Endpoints[0].Url), nil
}

// awaitCompletion polls until COMPLETE, ERROR or CANCELED. The first check
// happens right after submission. A zero MaxWait means no ceiling.
func (o *Orchestrator) awaitCompletion(ctx context.Context, jobs JobAPI, jobID string) error {
	var deadline time.Time
	if o.opts.MaxWait > 0 {
		deadline = time.Now().Add(o.opts.MaxWait)
	}

	var lastStatus types.JobStatus

	for {
		out, err := jobs.GetJob(ctx, &mediaconvert.GetJobInput{Id: aws.String(jobID)})
		if err != nil {
			return fmt.Errorf("%w: failed to get job %s: %w", core.ErrTranscode, jobID, err)
		}

		if out.Job == nil {
			return fmt.Errorf("%w: job %s missing from status response", core.ErrTranscode, jobID)
		}

		status := out.Job.Status
		if status != lastStatus {
			o.log.Info("Merge job %s status: %s", jobID, status)
			lastStatus = status
		}

		switch status {
		case types.JobStatusComplete:
			return nil
		case types.JobStatusError:
			return fmt.Errorf("%w: job %s: %s (code %d)", core.ErrTranscode, jobID,
				aws.ToString(out.Job.ErrorMessage), aws.ToInt32(out.Job.ErrorCode))
		case types.JobStatusCanceled:
			return fmt.Errorf("%w: %s", ErrJobCanceled, jobID)
		}

		if !deadline.IsZero() && time.Now().Add(o.opts.PollInterval).After(deadline) {
			return fmt.Errorf("%w: %s still %s after %s", ErrPollTimeout, jobID, status, o.opts.MaxWait)
		}

		err = o.wait(ctx, o.opts.PollInterval)
		if err != nil {
			return fmt.Errorf("stopped waiting for job %s: %w", jobID, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package transcode_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBucket   = "product-videos"
	testRole     = "arn:aws:iam::123456789012:role/MediaConvert"
	testEndpoint = "https://abcd1234.mediaconvert.us-west-2.amazonaws.com"
	testJobID    = "1700000000000-abc123"
)

var (
	errMockDescribe = errors.New("mock describe error")
	errMockCreate   = errors.New("mock create error")
)

// mockEndpointAPI is a mock implementation of the EndpointAPI interface.
type mockEndpointAPI struct {
	describeShouldFail bool
	calls              int
}

func (m *mockEndpointAPI) DescribeEndpoints(
	_ context.Context,
	_ *mediaconvert.DescribeEndpointsInput,
	_ ...func(*mediaconvert.Options),
) (*mediaconvert.DescribeEndpointsOutput, error) {
	m.calls++

	if m.describeShouldFail {
		return nil, errMockDescribe
	}

	return &mediaconvert.DescribeEndpointsOutput{
		Endpoints: []types.Endpoint{{Url: aws.String(testEndpoint)}},
	}, nil
}

// mockJobAPI replays a scripted sequence of job statuses.
type mockJobAPI struct {
	createShouldFail bool
	statuses         []types.JobStatus
	created          *mediaconvert.CreateJobInput
	polledIDs        []string
}

func (m *mockJobAPI) CreateJob(
	_ context.Context,
	params *mediaconvert.CreateJobInput,
	_ ...func(*mediaconvert.Options),
) (*mediaconvert.CreateJobOutput, error) {
	if m.createShouldFail {
		return nil, errMockCreate
	}

	m.created = params

	return &mediaconvert.CreateJobOutput{Job: &types.Job{Id: aws.String(testJobID)}}, nil
}

func (m *mockJobAPI) GetJob(
	_ context.Context,
	params *mediaconvert.GetJobInput,
	_ ...func(*mediaconvert.Options),
) (*mediaconvert.GetJobOutput, error) {
	index := len(m.polledIDs)
	m.polledIDs = append(m.polledIDs, aws.ToString(params.Id))

	status := m.statuses[len(m.statuses)-1]
	if index < len(m.statuses) {
		status = m.statuses[index]
	}

	job := &types.Job{Id: params.Id, Status: status}
	if status == types.JobStatusError {
		job.ErrorMessage = aws.String("Unsupported codec")
		job.ErrorCode = aws.Int32(1010)
	}

	return &mediaconvert.GetJobOutput{Job: job}, nil
}

// waitRecorder records requested delays without sleeping.
type waitRecorder struct {
	delays []time.Duration
}

func (w *waitRecorder) wait(_ context.Context, d time.Duration) error {
	w.delays = append(w.delays, d)

	return nil
}

type fixture struct {
	orchestrator *transcode.Orchestrator
	endpoints    *mockEndpointAPI
	jobs         *mockJobAPI
	waits        *waitRecorder
	endpointURLs []string
}

func newFixture(t *testing.T, opts transcode.Options, statuses ...types.JobStatus) *fixture {
	t.Helper()

	testLogger, err := logger.New("/tmp", "test-log.log")
	require.NoError(t, err)

	fix := &fixture{
		endpoints: &mockEndpointAPI{},
		jobs:      &mockJobAPI{statuses: statuses},
		waits:     &waitRecorder{},
	}

	factory := func(endpointURL string) transcode.JobAPI {
		fix.endpointURLs = append(fix.endpointURLs, endpointURL)

		return fix.jobs
	}

	opts.Bucket = testBucket
	opts.RoleARN = testRole

	fix.orchestrator = transcode.New(fix.endpoints, factory, opts, testLogger).WithWait(fix.waits.wait)

	return fix
}

func TestMergeAudioVideo_CompleteOnFirstPoll(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, transcode.Options{}, types.JobStatusComplete)

	outputKey, err := fix.orchestrator.MergeAudioVideo(context.Background(), "step2_input/v.mp4", "step2_input/a.mp3")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(outputKey, "step2_output/merge_job_"), outputKey)
	assert.True(t, strings.HasSuffix(outputKey, ".mp4"), outputKey)
	assert.Equal(t, []string{testJobID}, fix.jobs.polledIDs, "exactly one status check")
	assert.Empty(t, fix.waits.delays)
	assert.Equal(t, []string{testEndpoint}, fix.endpointURLs)
	assert.Equal(t, 1, fix.endpoints.calls)

	destination := aws.ToString(fix.jobs.created.Settings.OutputGroups[0].OutputGroupSettings.FileGroupSettings.Destination)
	assert.Equal(t, "s3://"+testBucket+"/"+strings.TrimSuffix(outputKey, ".mp4"), destination)
	assert.Equal(t, testRole, aws.ToString(fix.jobs.created.Role))
	assert.Equal(t, int32(0), aws.ToInt32(fix.jobs.created.Priority))
	assert.Equal(t, types.StatusUpdateIntervalSeconds60, fix.jobs.created.StatusUpdateInterval)
}

func TestMergeAudioVideo_ErrorOnFirstPoll(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, transcode.Options{}, types.JobStatusError)

	outputKey, err := fix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.ErrorIs(t, err, core.ErrTranscode)
	assert.Contains(t, err.Error(), "Unsupported codec")
	assert.Empty(t, outputKey)
	assert.Len(t, fix.jobs.polledIDs, 1, "no further polls after ERROR")
	assert.Empty(t, fix.waits.delays)
}

func TestMergeAudioVideo_PollsAtFixedInterval(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, transcode.Options{},
		types.JobStatusSubmitted,
		types.JobStatusProgressing,
		types.JobStatusProgressing,
		types.JobStatusComplete,
		types.JobStatusError,
	)

	_, err := fix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.NoError(t, err)

	assert.Len(t, fix.jobs.polledIDs, 4, "stops exactly at COMPLETE")
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second, 30 * time.Second}, fix.waits.delays)
}

func TestMergeAudioVideo_CustomInterval(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, transcode.Options{PollInterval: 5 * time.Second},
		types.JobStatusProgressing, types.JobStatusComplete)

	_, err := fix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, fix.waits.delays)
}

func TestMergeAudioVideo_Canceled(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, transcode.Options{}, types.JobStatusProgressing, types.JobStatusCanceled)

	_, err := fix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.ErrorIs(t, err, transcode.ErrJobCanceled)
	require.ErrorIs(t, err, core.ErrTranscode)
}

func TestMergeAudioVideo_MaxWaitCeiling(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, transcode.Options{PollInterval: time.Minute, MaxWait: 30 * time.Second},
		types.JobStatusProgressing)

	_, err := fix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.ErrorIs(t, err, transcode.ErrPollTimeout)
	assert.Len(t, fix.jobs.polledIDs, 1)
	assert.Empty(t, fix.waits.delays)
}

func TestMergeAudioVideo_ContextCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	testLogger, err := logger.New("/tmp", "test-log.log")
	require.NoError(t, err)

	jobs := &mockJobAPI{statuses: []types.JobStatus{types.JobStatusProgressing}}
	factory := func(string) transcode.JobAPI { return jobs }
	orchestrator := transcode.New(&mockEndpointAPI{}, factory,
		transcode.Options{Bucket: testBucket, RoleARN: testRole, PollInterval: time.Hour}, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = orchestrator.MergeAudioVideo(ctx, "v.mp4", "a.mp3")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, jobs.polledIDs, 1)
}

func TestMergeAudioVideo_SubmissionFailures(t *testing.T) {
	t.Parallel()

	describeFix := newFixture(t, transcode.Options{}, types.JobStatusComplete)
	describeFix.endpoints.describeShouldFail = true

	_, err := describeFix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.ErrorIs(t, err, core.ErrTranscode)
	require.ErrorIs(t, err, errMockDescribe)

	createFix := newFixture(t, transcode.Options{}, types.JobStatusComplete)
	createFix.jobs.createShouldFail = true

	_, err = createFix.orchestrator.MergeAudioVideo(context.Background(), "v.mp4", "a.mp3")
	require.ErrorIs(t, err, errMockCreate)
	assert.Empty(t, createFix.jobs.polledIDs)
}

func TestJobSettings(t *testing.T) {
	t.Parallel()

	settings := transcode.JobSettings(testBucket, "step2_input/v.mp4", "step2_input/a.mp3", "step2_output/merge_job_x")

	require.Len(t, settings.Inputs, 1)
	input := settings.Inputs[0]
	assert.Equal(t, "s3://product-videos/step2_input/v.mp4", aws.ToString(input.FileInput))
	assert.Equal(t, types.InputTimecodeSourceZerobased, input.TimecodeSource)

	selector, ok := input.AudioSelectors["Audio Selector 1"]
	require.True(t, ok)
	assert.Equal(t, types.AudioDefaultSelectionNotDefault, selector.DefaultSelection)
	assert.Equal(t, "s3://product-videos/step2_input/a.mp3", aws.ToString(selector.ExternalAudioFileInput))

	require.Len(t, settings.OutputGroups, 1)
	group := settings.OutputGroups[0]
	assert.Equal(t, types.OutputGroupTypeFileGroupSettings, group.OutputGroupSettings.Type)

	require.Len(t, group.Outputs, 1)
	output := group.Outputs[0]

	h264 := output.VideoDescription.CodecSettings.H264Settings
	assert.Equal(t, types.VideoCodecH264, output.VideoDescription.CodecSettings.Codec)
	assert.Equal(t, types.H264RateControlModeQvbr, h264.RateControlMode)
	assert.Equal(t, types.H264SceneChangeDetectTransitionDetection, h264.SceneChangeDetect)
	assert.Equal(t, int32(5000000), aws.ToInt32(h264.MaxBitrate))
	assert.Equal(t, int32(7), aws.ToInt32(h264.QvbrSettings.QvbrQualityLevel))

	require.Len(t, output.AudioDescriptions, 1)
	audio := output.AudioDescriptions[0]
	assert.Equal(t, "Audio Selector 1", aws.ToString(audio.AudioSourceName))
	assert.Equal(t, types.AudioCodecAac, audio.CodecSettings.Codec)
	assert.Equal(t, int32(96000), aws.ToInt32(audio.CodecSettings.AacSettings.Bitrate))
	assert.Equal(t, int32(48000), aws.ToInt32(audio.CodecSettings.AacSettings.SampleRate))
	assert.Equal(t, types.AacCodingModeCodingMode20, audio.CodecSettings.AacSettings.CodingMode)

	assert.Equal(t, types.ContainerTypeMp4, output.ContainerSettings.Container)
}

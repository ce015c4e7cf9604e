package synthesis_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/synthesis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockPolly = errors.New("mock polly error: ThrottlingException")

// failingReader returns some bytes and then an error.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("connection reset")
	}

	r.sent = true

	return copy(p, "AUD"), nil
}

// mockSpeechAPI is a mock implementation of the SpeechAPI interface.
type mockSpeechAPI struct {
	shouldFail bool
	stream     io.Reader
	input      *polly.SynthesizeSpeechInput
	calls      int
}

func (m *mockSpeechAPI) SynthesizeSpeech(
	_ context.Context,
	params *polly.SynthesizeSpeechInput,
	_ ...func(*polly.Options),
) (*polly.SynthesizeSpeechOutput, error) {
	m.calls++
	m.input = params

	if m.shouldFail {
		return nil, errMockPolly
	}

	stream := m.stream
	if stream == nil {
		stream = bytes.NewReader([]byte("AUDIO"))
	}

	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(stream)}, nil
}

func newTestClient(t *testing.T, api synthesis.SpeechAPI, opts synthesis.Options) *synthesis.Client {
	t.Helper()

	testLogger, err := logger.New("/tmp", "test-log.log")
	require.NoError(t, err)

	return synthesis.New(api, opts, testLogger)
}

func listDir(t *testing.T, dir string) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	return entries
}

func TestVoiceFor(t *testing.T) {
	t.Parallel()

	english, err := synthesis.VoiceFor(core.English)
	require.NoError(t, err)
	assert.Equal(t, types.VoiceIdJoanna, english.ID)
	assert.Equal(t, types.LanguageCode("en-US"), english.LanguageCode)

	chinese, err := synthesis.VoiceFor(core.Chinese)
	require.NoError(t, err)
	assert.Equal(t, types.VoiceIdZhiyu, chinese.ID)
	assert.Equal(t, types.LanguageCode("cmn-CN"), chinese.LanguageCode)

	_, err = synthesis.VoiceFor(core.Language("French"))
	require.ErrorIs(t, err, core.ErrUnsupportedLanguage)
}

func TestSynthesize_English(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	api := &mockSpeechAPI{}
	client := newTestClient(t, api, synthesis.Options{TempDir: dir})

	path, err := client.Synthesize(context.Background(), "Buy our widget", core.English)
	require.NoError(t, err)

	assert.Equal(t, "Buy our widget", aws.ToString(api.input.Text))
	assert.Equal(t, types.VoiceId("Joanna"), api.input.VoiceId)
	assert.Equal(t, types.LanguageCode("en-US"), api.input.LanguageCode)
	assert.Equal(t, types.OutputFormatMp3, api.input.OutputFormat)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("AUDIO"), data)
	assert.Len(t, listDir(t, dir), 1)
}

func TestSynthesize_NormalizesText(t *testing.T) {
	t.Parallel()

	api := &mockSpeechAPI{}
	client := newTestClient(t, api, synthesis.Options{TempDir: t.TempDir(), Normalize: true})

	_, err := client.Synthesize(context.Background(), "- 超长续航\n- 快速充电", core.Chinese)
	require.NoError(t, err)

	assert.Equal(t, "超长续航 快速充电。", aws.ToString(api.input.Text))
	assert.Equal(t, types.VoiceIdZhiyu, api.input.VoiceId)
}

func TestSynthesize_RejectsInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		language core.Language
		wantErr  error
	}{
		{name: "empty text", text: "  ", language: core.English, wantErr: synthesis.ErrTextEmpty},
		{name: "too long", text: "abcdefghijk", language: core.English, wantErr: synthesis.ErrTextTooLong},
		{name: "unsupported language", text: "Bonjour", language: core.Language("French"), wantErr: core.ErrUnsupportedLanguage},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			api := &mockSpeechAPI{}
			client := newTestClient(t, api, synthesis.Options{TempDir: t.TempDir(), MaxTextChars: 10})

			_, err := client.Synthesize(context.Background(), testCase.text, testCase.language)
			require.ErrorIs(t, err, testCase.wantErr)
			assert.Zero(t, api.calls, "service must not be called for rejected input")
		})
	}
}

func TestSynthesize_ServiceError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	client := newTestClient(t, &mockSpeechAPI{shouldFail: true}, synthesis.Options{TempDir: dir})

	_, err := client.Synthesize(context.Background(), "Buy our widget", core.English)
	require.ErrorIs(t, err, core.ErrSynthesis)
	assert.Contains(t, err.Error(), "ThrottlingException")
	assert.Empty(t, listDir(t, dir))
}

func TestSynthesize_RemovesPartialFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stream io.Reader
	}{
		{name: "broken stream", stream: &failingReader{}},
		{name: "empty stream", stream: bytes.NewReader(nil)},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			client := newTestClient(t, &mockSpeechAPI{stream: testCase.stream}, synthesis.Options{TempDir: dir})

			_, err := client.Synthesize(context.Background(), "Buy our widget", core.English)
			require.ErrorIs(t, err, core.ErrSynthesis)
			assert.Empty(t, listDir(t, dir))
		})
	}
}

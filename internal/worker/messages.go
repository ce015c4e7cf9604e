package worker

import "github.com/book-expert/events"

// Request subjects, relative to the configured prefix.
const (
	SubjectGenerateAudio = "audio.generate"
	SubjectMergeVideo    = "video.merge"
	SubjectProcessVideo  = "video.process"
)

// WorkflowRequest asks the service to run one workflow. Media travel through
// the inbox object store and are referenced by key.
type WorkflowRequest struct {
	Header   events.EventHeader `json:"header"`
	Text     string             `json:"text,omitempty"`
	Language string             `json:"language,omitempty"`
	AudioKey string             `json:"audio_key,omitempty"`
	VideoKey string             `json:"video_key,omitempty"`
}

// WorkflowReply carries the operator-facing outcome of a workflow.
type WorkflowReply struct {
	Header          events.EventHeader `json:"header"`
	Key             string             `json:"key,omitempty"`
	URL             string             `json:"url,omitempty"`
	LinkUnavailable bool               `json:"link_unavailable,omitempty"`
	Message         string             `json:"message"`
	Error           string             `json:"error,omitempty"`
}

// Failed reports whether the workflow ended in error.
func (r *WorkflowReply) Failed() bool {
	return r.Error != ""
}

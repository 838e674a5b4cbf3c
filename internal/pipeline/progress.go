package pipeline

// Progress categories
const (
	CategoryLifecycle = "lifecycle"
	CategoryFetch     = "fetch"
	CategoryEmail     = "email"
	CategoryError     = "error"
)

// ProgressEvent represents a progress update during a sync run
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when sync progress occurs
type ProgressCallback func(event ProgressEvent)

// EmailProgress is the content of a per-email progress event
type EmailProgress struct {
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	MessageID  string  `json:"message_id"`
	Subject    string  `json:"subject"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Matched    bool    `json:"matched"`
	Updated    bool    `json:"updated"`
	Duplicate  bool    `json:"duplicate,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// emit calls the progress callback if configured
func (s *Service) emit(runID, step, category, message string, content any) {
	if s.onProgress != nil {
		s.onProgress(ProgressEvent{
			Step:     step,
			Category: category,
			Message:  message,
			RunID:    runID,
			Content:  content,
		})
	}
}

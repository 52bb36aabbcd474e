package ingest

// Status is the fixed progress event vocabulary. "error" is always
// terminal: no further events follow it.
type Status string

const (
	StatusCloning        Status = "cloning"
	StatusScanning       Status = "scanning"
	StatusProcessingGit  Status = "processing_git"
	StatusInfo           Status = "info"
	StatusProcessingFile Status = "processing_file"
	StatusComplete       Status = "complete"
	StatusError          Status = "error"
)

// Event is one flat progress record. Optional fields are pointers so
// absent and zero stay distinguishable on the wire (the first file of a
// run really is at progress 0).
type Event struct {
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	File       string `json:"file,omitempty"`
	Progress   *int   `json:"progress,omitempty"`
	TotalFiles *int   `json:"total_files,omitempty"`
}

// EmitFunc observes one event. Run invokes it synchronously, in order.
type EmitFunc func(Event)

func intPtr(v int) *int { return &v }

func errorEvent(message string) Event {
	return Event{Status: StatusError, Message: message}
}

package history

import "time"

const SchemaVersion = 1

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Run records one sync cycle: what the query returned, what the project
// model looked like and whether it changed since the previous run.
type Run struct {
	ID            string        `json:"id" yaml:"id"`
	ProjectKey    string        `json:"project_key" yaml:"project_key"`
	SchemaVersion int           `json:"schema_version" yaml:"schema_version"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Status        Status        `json:"status" yaml:"status"`
	Changed       bool          `json:"changed" yaml:"changed"`
	Fingerprint   string        `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`

	Rules          int `json:"rules" yaml:"rules"`
	SourceFiles    int `json:"source_files" yaml:"source_files"`
	GeneratedFiles int `json:"generated_files" yaml:"generated_files"`
	Targets        int `json:"targets" yaml:"targets"`
	Sources        int `json:"sources" yaml:"sources"`

	ContentEntries   int `json:"content_entries" yaml:"content_entries"`
	SourceFolders    int `json:"source_folders" yaml:"source_folders"`
	GeneratedFolders int `json:"generated_folders" yaml:"generated_folders"`

	ErrorCode    string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

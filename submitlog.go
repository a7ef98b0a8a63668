package pbsmk

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const submitLogDir = ".pbsmk"

// SubmitLogPath returns the audit log location for the current working
// directory: ".pbsmk/submissions.json", mirroring mk's own ".mk/state.json"
// convention in state.go.
func SubmitLogPath() string {
	return filepath.Join(submitLogDir, "submissions.json")
}

// SubmissionRecord is one append-only entry in the submission audit log.
// Unlike the content-hash staleness tracking it's adapted from, this log
// is never read back to decide whether to resubmit — every build submits
// every requested target regardless of history — it exists purely so an
// operator can answer "when did target X last get a job id, and what did
// it depend on".
type SubmissionRecord struct {
	Target       string    `json:"target"`
	Kind         string    `json:"kind"`
	SubmissionID string    `json:"submission_id"`
	Depend       string    `json:"depend,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// SubmitLog is a JSON-persisted, append-only history of submissions.
type SubmitLog struct {
	mu      sync.Mutex
	path    string
	Records []SubmissionRecord `json:"records"`
}

// LoadSubmitLog reads the audit log at path, returning an empty log if it
// doesn't yet exist.
func LoadSubmitLog(path string) *SubmitLog {
	l := &SubmitLog{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}
	_ = json.Unmarshal(data, l)
	return l
}

// Append records one submission in memory. Callers call Save to persist.
func (l *SubmitLog) Append(rec SubmissionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Records = append(l.Records, rec)
}

// Save writes the full record set to l.path, creating its parent
// directory if needed.
func (l *SubmitLog) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}

// Package runlog writes reproducible run artifacts: a timestamped run
// directory, a manifest.json echoing the configuration, and a JSONL
// stream of per-step results.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a time-ordered unique identifier, falling back to a
// random one if v7 generation fails.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// CreateRunDir creates base/<timestamp>_<slug> and returns its path.
// An empty base defaults to "runs"; an empty name slugs to "run".
func CreateRunDir(base, name string) (string, error) {
	if base == "" {
		base = "runs"
	}
	slug := "run"
	if name != "" {
		slug = strings.NewReplacer(" ", "_", "/", "_").Replace(name)
	}
	dir := filepath.Join(base, time.Now().Format("20060102_150405")+"_"+slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

// Manifest records what produced a run.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Config    any       `json:"config"`
	Seed      *int64    `json:"seed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	GoVersion string    `json:"go_version"`
	Revision  string    `json:"revision,omitempty"`
}

// WriteManifest writes manifest.json into the run directory, echoing
// the config that drove the run. The VCS revision is included when the
// binary carries build info.
func WriteManifest(dir string, config any, seed *int64) (Manifest, error) {
	m := Manifest{
		RunID:     NewRunID(),
		Config:    config,
		Seed:      seed,
		CreatedAt: time.Now(),
		GoVersion: runtime.Version(),
		Revision:  vcsRevision(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// Writer appends one JSON object per line. Writes go straight to the
// file, so a killed run keeps everything logged so far.
type Writer struct {
	f   *os.File
	enc *json.Encoder
}

// NewWriter creates (or truncates) a JSONL file.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create results log: %w", err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f)}, nil
}

// Log writes one entry.
func (w *Writer) Log(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	return w.f.Close()
}

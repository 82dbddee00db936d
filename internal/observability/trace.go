package observability

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/IshaanNene/driverscout/internal/types"
)

// Trace is the per-invocation diagnostic log. Every line looks like
//
//	[2024-03-09T13:05:07Z] strategy failed error="HTTP 404" strategy=api
//
// Write failures are swallowed; the trace never affects control flow.
type Trace struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
	path   string
	stem   string
	dir    string
}

// maxSuffix bounds the collision search for one file stem.
const maxSuffix = 1000

// OpenTrace creates <dir>/<safe-tag>_<YYYYmmdd_HHMMSS>.log. The file is
// created exclusively; when the name is taken by another invocation the
// stem gets a _2, _3, … suffix, and debug artifacts share that stem.
func OpenTrace(dir, serviceTag string, now time.Time) (*Trace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	base := types.FileStem(serviceTag, now)
	for n := 1; n <= maxSuffix; n++ {
		stem := base
		if n > 1 {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
		path := filepath.Join(dir, stem+".log")

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open trace log: %w", err)
		}

		return &Trace{
			logger: newTraceLogger(f),
			file:   f,
			path:   path,
			stem:   stem,
			dir:    dir,
		}, nil
	}
	return nil, fmt.Errorf("open trace log: no free name for %s after %d attempts", base, maxSuffix)
}

// NewTrace writes trace lines to w. Artifacts are not persisted.
func NewTrace(w io.Writer) *Trace {
	return &Trace{logger: newTraceLogger(w)}
}

// NopTrace discards everything.
func NopTrace() *Trace {
	return &Trace{logger: zerolog.Nop()}
}

func newTraceLogger(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("[%v]", i)
		},
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// Event appends one line. kv is a flat list of key/value pairs.
func (t *Trace) Event(msg string, kv ...any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Log().Fields(kv).Msg(msg)
}

// SaveArtifact writes a debug artifact next to the log file as
// <stem>_<suffix> and returns its path. Existing files are never
// overwritten; a repeated suffix gets a number before its extension. It is
// a no-op for traces that are not backed by a file.
func (t *Trace) SaveArtifact(suffix string, data []byte) (string, error) {
	if t == nil || t.dir == "" {
		return "", nil
	}

	ext := filepath.Ext(suffix)
	name := strings.TrimSuffix(suffix, ext)
	for n := 1; n <= maxSuffix; n++ {
		file := t.stem + "_" + suffix
		if n > 1 {
			file = fmt.Sprintf("%s_%s_%d%s", t.stem, name, n, ext)
		}
		path := filepath.Join(t.dir, file)

		err := writeNew(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save artifact: %w", err)
		}
		t.Event("debug artifact saved", "path", path, "bytes", len(data))
		return path, nil
	}
	return "", fmt.Errorf("save artifact: no free name for %s", suffix)
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Path returns the log file path, or "" for unbacked traces.
func (t *Trace) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Close closes the underlying file.
func (t *Trace) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"lootsweep.ai/internal/sim/pickup"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TransferLogger writes one JSONL entry per deposit (compressed).
type TransferLogger struct{ w *JSONLZstdWriter }

func NewTransferLogger(worldDir string) *TransferLogger {
	return &TransferLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "transfers"), "transfers")}
}

func (l *TransferLogger) WriteTransfer(v pickup.TransferEntry) error { return l.w.Write(v) }
func (l *TransferLogger) Close() error                               { return l.w.Close() }

// PassLogger writes one JSONL entry per scan pass, skipped passes included (compressed).
type PassLogger struct{ w *JSONLZstdWriter }

func NewPassLogger(worldDir string) *PassLogger {
	return &PassLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "passes"), "passes")}
}

func (l *PassLogger) WritePass(v pickup.PassReport) error { return l.w.Write(v) }
func (l *PassLogger) Close() error                        { return l.w.Close() }

// Tee forwards every entry to all sinks and joins their errors.
type Tee struct {
	Transfers []pickup.TransferLogger
	Passes    []pickup.PassLogger
}

func (t Tee) WriteTransfer(v pickup.TransferEntry) error {
	var errs []error
	for _, l := range t.Transfers {
		if err := l.WriteTransfer(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) WritePass(v pickup.PassReport) error {
	var errs []error
	for _, l := range t.Passes {
		if err := l.WritePass(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadJSONL decodes a compressed JSONL file and calls fn with each line.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

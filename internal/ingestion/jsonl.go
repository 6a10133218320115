package ingestion

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

//go:embed commit.schema.json
var commitSchema []byte

// maxLineBytes bounds one commit record; records carry full file sources
const maxLineBytes = 64 << 20

// JSONLSource reads one commit per line and validates each against the
// commit schema. Invalid lines are logged with their line number and skipped.
type JSONLSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	schema  *gojsonschema.Schema
	line    int
	skipped int
	log     logrus.FieldLogger
}

// OpenJSONL opens path, or stdin when path is "-"
func OpenJSONL(path string, logger logrus.FieldLogger) (*JSONLSource, error) {
	if path == "-" {
		return NewJSONLSource(io.NopCloser(os.Stdin), logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileSystemError(err, "failed to open commit stream").WithContext("path", path)
	}
	src, err := NewJSONLSource(f, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewJSONLSource reads commits from r and closes it on Close
func NewJSONLSource(r io.ReadCloser, logger logrus.FieldLogger) (*JSONLSource, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(commitSchema))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityCritical, "invalid embedded commit schema")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &JSONLSource{
		scanner: scanner,
		closer:  r,
		schema:  schema,
		log:     logger.WithField("component", "jsonl-source"),
	}, nil
}

// Skipped returns how many lines failed validation so far
func (s *JSONLSource) Skipped() int { return s.skipped }

// Next implements mining.CommitSource
func (s *JSONLSource) Next(ctx context.Context) (*models.Commit, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, errors.FileSystemError(err, "failed to read commit stream").WithContext("line", s.line+1)
			}
			return nil, io.EOF
		}
		s.line++

		raw := s.scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		commit, problem := s.decode(raw)
		if problem != "" {
			s.skipped++
			s.log.WithFields(logrus.Fields{
				"line":  s.line,
				"error": problem,
			}).Warn("skipping invalid commit record")
			continue
		}
		return commit, nil
	}
}

// decode returns the commit or a description of why the line is invalid
func (s *JSONLSource) decode(raw []byte) (*models.Commit, string) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err.Error()
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return nil, strings.Join(msgs, "; ")
	}

	var commit models.Commit
	if err := json.Unmarshal(raw, &commit); err != nil {
		return nil, err.Error()
	}
	return &commit, ""
}

// Close implements mining.CommitSource
func (s *JSONLSource) Close() error {
	return s.closer.Close()
}

// JSONLWriter writes commits in the format JSONLSource reads
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewJSONLWriter wraps w; call Flush when done
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{w: bw, enc: enc}
}

// Write appends one commit line
func (jw *JSONLWriter) Write(c *models.Commit) error {
	if err := jw.enc.Encode(c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to encode commit").
			WithContext("commit", c.Hash)
	}
	jw.n++
	return nil
}

// Count returns the number of commits written
func (jw *JSONLWriter) Count() int { return jw.n }

// Flush flushes buffered output
func (jw *JSONLWriter) Flush() error {
	if err := jw.w.Flush(); err != nil {
		return errors.FileSystemError(err, "failed to flush commit stream")
	}
	return nil
}

// CommitSource is the subset of mining.CommitSource the tee needs
type CommitSource interface {
	Next(ctx context.Context) (*models.Commit, error)
	Close() error
}

// TeeSource records every commit served by src to w
type TeeSource struct {
	src CommitSource
	w   *JSONLWriter
}

// NewTeeSource wraps src
func NewTeeSource(src CommitSource, w *JSONLWriter) *TeeSource {
	return &TeeSource{src: src, w: w}
}

// Next implements mining.CommitSource
func (t *TeeSource) Next(ctx context.Context) (*models.Commit, error) {
	c, err := t.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.w.Write(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Close flushes the writer and closes the wrapped source
func (t *TeeSource) Close() error {
	flushErr := t.w.Flush()
	if err := t.src.Close(); err != nil {
		return err
	}
	return flushErr
}

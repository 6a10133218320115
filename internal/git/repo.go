package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/changeminer/internal/errors"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Repository runs git subcommands against one repository. Calls are
// throttled by a token bucket so large histories do not hammer the disk.
type Repository struct {
	path    string
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// CommitInfo is one entry of the commit walk
type CommitInfo struct {
	Hash      string
	Parents   []string
	Author    string
	Timestamp time.Time
	Message   string
}

// Open verifies that path is a git repository. callsPerSecond <= 0 disables
// throttling.
func Open(ctx context.Context, path string, callsPerSecond float64, logger logrus.FieldLogger) (*Repository, error) {
	limit := rate.Inf
	if callsPerSecond > 0 {
		limit = rate.Limit(callsPerSecond)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &Repository{
		path:    path,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.WithField("component", "git"),
	}
	if _, err := r.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "not a git repository").
			WithContext("path", path)
	}
	return r, nil
}

// Path returns the repository path
func (r *Repository) Path() string { return r.path }

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	full := append([]string{"-c", "core.quotepath=off"}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = r.path
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.log.WithFields(logrus.Fields{
		"args":     strings.Join(args, " "),
		"duration": time.Since(start),
	}).Trace("git call")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.ExternalError(err, "git "+args[0]+" failed").
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// ResolveRevision returns the full hash of rev
func (r *Repository) ResolveRevision(ctx context.Context, rev string) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", errors.ValidationErrorf("unknown revision %q", rev)
	}
	return strings.TrimSpace(out), nil
}

// Log lists non-merge commits reachable from to (HEAD when empty) and not
// from from, oldest first
func (r *Repository) Log(ctx context.Context, from, to string) ([]CommitInfo, error) {
	if to == "" {
		to = "HEAD"
	}
	rev := to
	if from != "" {
		rev = from + ".." + to
	}

	format := strings.Join([]string{"%H", "%P", "%an", "%at", "%B"}, "%x1f") + "%x1e"
	out, err := r.run(ctx, "log", "--reverse", "--no-merges", "--format="+format, rev, "--")
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

func parseLog(out string) ([]CommitInfo, error) {
	var commits []CommitInfo
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 5)
		if len(fields) != 5 {
			return nil, errors.InternalErrorf("unexpected git log record %q", record)
		}
		secs, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return nil, errors.InternalErrorf("bad commit timestamp %q", fields[3])
		}
		commits = append(commits, CommitInfo{
			Hash:      fields[0],
			Parents:   strings.Fields(fields[1]),
			Author:    fields[2],
			Timestamp: time.Unix(secs, 0).UTC(),
			Message:   strings.TrimSpace(fields[4]),
		})
	}
	return commits, nil
}

// Show returns the unified diff of a commit against its first parent, with
// rename detection
func (r *Repository) Show(ctx context.Context, hash string) (string, error) {
	return r.run(ctx, "show", "-M", "--no-color", "--no-ext-diff", "--format=", "--unified=3", hash)
}

// FileAt returns the content of path at rev
func (r *Repository) FileAt(ctx context.Context, rev, path string) (string, error) {
	return r.run(ctx, "cat-file", "blob", rev+":"+path)
}

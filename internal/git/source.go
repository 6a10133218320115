package git

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// MethodExtractor finds the methods of one version of a file
type MethodExtractor interface {
	Extract(ctx context.Context, path string, source []byte) ([]models.MethodDescriptor, error)
}

// SourceOptions selects the commits and files a Source yields
type SourceOptions struct {
	From       string // exclusive; "" starts at the root commit
	To         string // inclusive; "" means HEAD
	Extensions []string
}

// Source walks a repository's history and serves each commit with the
// method descriptors of every matching file it touches
type Source struct {
	repo      *Repository
	extractor MethodExtractor
	exts      map[string]bool
	commits   []CommitInfo
	pos       int
	log       logrus.FieldLogger
}

// NewSource lists the commits to mine up front so Len is known
func NewSource(ctx context.Context, repo *Repository, extractor MethodExtractor, opts SourceOptions, logger logrus.FieldLogger) (*Source, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	commits, err := repo.Log(ctx, opts.From, opts.To)
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.ToLower(ext)] = true
	}

	logger.WithFields(logrus.Fields{
		"repo":    repo.Path(),
		"from":    opts.From,
		"to":      opts.To,
		"commits": len(commits),
	}).Info("commit walk prepared")

	return &Source{
		repo:      repo,
		extractor: extractor,
		exts:      exts,
		commits:   commits,
		log:       logger.WithField("component", "git-source"),
	}, nil
}

// Len returns the number of commits in the walk
func (s *Source) Len() int { return len(s.commits) }

// Next implements mining.CommitSource
func (s *Source) Next(ctx context.Context) (*models.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.commits) {
		return nil, io.EOF
	}
	info := s.commits[s.pos]
	s.pos++
	return s.commit(ctx, info)
}

// Close implements mining.CommitSource
func (s *Source) Close() error { return nil }

func (s *Source) commit(ctx context.Context, info CommitInfo) (*models.Commit, error) {
	diff, err := s.repo.Show(ctx, info.Hash)
	if err != nil {
		return nil, err
	}

	c := &models.Commit{
		Hash:      info.Hash,
		Author:    info.Author,
		Message:   info.Message,
		Timestamp: info.Timestamp,
	}
	for _, fd := range ParseDiff(diff) {
		if fd.Binary || !s.matches(fd) {
			continue
		}
		mod, err := s.modification(ctx, info, fd)
		if err != nil {
			if errors.GetType(err) == errors.ErrorTypeExternal && ctx.Err() == nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"commit": c.ShortHash(),
					"file":   fd.Path(),
				}).Warn("skipping file that could not be read or parsed")
				continue
			}
			return nil, err
		}
		c.Modifications = append(c.Modifications, mod)
	}
	return c, nil
}

func (s *Source) matches(fd *FileDiff) bool {
	for _, p := range []string{fd.NewPath, fd.OldPath} {
		if p != "" && s.exts[strings.ToLower(path.Ext(p))] {
			return true
		}
	}
	return false
}

func (s *Source) modification(ctx context.Context, info CommitInfo, fd *FileDiff) (*models.Modification, error) {
	mod := &models.Modification{
		Filename: path.Base(fd.Path()),
		OldPath:  fd.OldPath,
		NewPath:  fd.NewPath,
		Kind:     fd.Kind,
		Diff:     fd.Patch(),
	}

	if fd.OldPath != "" {
		if len(info.Parents) == 0 {
			return nil, errors.InternalErrorf("root commit %s modifies existing file %s", info.Hash, fd.OldPath)
		}
		text, methods, err := s.version(ctx, info.Parents[0], fd.OldPath)
		if err != nil {
			return nil, err
		}
		mod.SourceBefore, mod.MethodsBefore = text, methods
	}
	if fd.NewPath != "" {
		text, methods, err := s.version(ctx, info.Hash, fd.NewPath)
		if err != nil {
			return nil, err
		}
		mod.SourceAfter, mod.Methods = text, methods
	}

	mod.ChangedMethods = touchedMethods(mod.MethodsBefore, mod.Methods, fd.DeletedLines(), fd.AddedLines())
	return mod, nil
}

func (s *Source) version(ctx context.Context, rev, filePath string) (string, []models.MethodDescriptor, error) {
	text, err := s.repo.FileAt(ctx, rev, filePath)
	if err != nil {
		return "", nil, err
	}
	methods, err := s.extractor.Extract(ctx, filePath, []byte(text))
	if err != nil {
		return "", nil, err
	}
	return text, methods, nil
}

// touchedMethods returns the current methods containing an added line, then
// the before methods containing a deleted line that are not already listed
func touchedMethods(before, current []models.MethodDescriptor, deleted, added []int) []models.MethodDescriptor {
	var out []models.MethodDescriptor
	seen := make(map[string]bool)

	collect := func(methods []models.MethodDescriptor, lines []int) {
		for _, m := range methods {
			if seen[m.LongName] || !containsLine(m, lines) {
				continue
			}
			seen[m.LongName] = true
			out = append(out, m)
		}
	}
	collect(current, added)
	collect(before, deleted)
	return out
}

func containsLine(m models.MethodDescriptor, lines []int) bool {
	for _, n := range lines {
		if n >= m.StartLine && n <= m.EndLine {
			return true
		}
	}
	return false
}

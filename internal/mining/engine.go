package mining

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// Options tune the reconciliation heuristics
type Options struct {
	Separator          string
	SignatureThreshold float64
	BodyThreshold      float64
	Pairing            PairingMode
	RenameKeywords     []string
	SafetyNet          bool
	CommentPrefixes    []string

	// Scorer overrides the similarity scorer, mainly for tests
	Scorer Scorer
}

// DefaultOptions returns the reference heuristics
func DefaultOptions() Options {
	return Options{
		Separator:          DefaultSeparator,
		SignatureThreshold: DefaultSignatureThreshold,
		BodyThreshold:      DefaultBodyThreshold,
		Pairing:            PairByBody,
		RenameKeywords:     DefaultRenameKeywords,
		SafetyNet:          true,
		CommentPrefixes:    []string{"//"},
	}
}

// CommitStats summarizes one ProcessCommit call
type CommitStats struct {
	Processed int
	Skipped   int
}

// RunStats summarizes one Run call
type RunStats struct {
	Commits       int
	Modifications int
	Skipped       int
	Duration      time.Duration
}

// Engine reconciles method identities commit by commit. It owns its Registry
// and Ledger; all calls must come from one goroutine.
type Engine struct {
	opts     Options
	codec    NameCodec
	registry *Registry
	ledger   *Ledger
	scorer   Scorer
	differ   *LineDiffer
	detector *RenameDetector
	observer Observer
	log      logrus.FieldLogger
}

// NewEngine creates an engine with an empty registry
func NewEngine(opts Options, logger logrus.FieldLogger, observers ...Observer) *Engine {
	codec := NewNameCodec(opts.Separator)
	if opts.Pairing == "" {
		opts.Pairing = PairByBody
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = NewDiffScorer()
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	var observer Observer = NopObserver{}
	if len(observers) == 1 {
		observer = observers[0]
	} else if len(observers) > 1 {
		observer = multiObserver(observers)
	}

	registry := NewRegistry(codec)
	return &Engine{
		opts:     opts,
		codec:    codec,
		registry: registry,
		ledger:   NewLedger(registry),
		scorer:   scorer,
		differ:   NewLineDiffer(opts.CommentPrefixes),
		detector: NewRenameDetector(codec, opts.RenameKeywords),
		observer: observer,
		log:      logger,
	}
}

// Registry returns the live method registry
func (e *Engine) Registry() *Registry { return e.registry }

// Ledger returns the history ledger
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Codec returns the name codec in use
func (e *Engine) Codec() NameCodec { return e.codec }

// Run processes every commit of src in order. It stops at io.EOF or when ctx
// is cancelled; the registry then reflects every commit processed so far.
func (e *Engine) Run(ctx context.Context, src CommitSource) (RunStats, error) {
	var stats RunStats
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}
		c, err := src.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		cs := e.ProcessCommit(c)
		stats.Commits++
		stats.Modifications += cs.Processed + cs.Skipped
		stats.Skipped += cs.Skipped

		if stats.Commits%100 == 0 {
			e.log.WithFields(logrus.Fields{
				"commits": stats.Commits,
				"files":   e.registry.FileCount(),
				"methods": e.registry.MethodCount(),
			}).Info("mining progress")
		}
	}

	stats.Duration = time.Since(start)
	e.log.WithFields(logrus.Fields{
		"commits":       stats.Commits,
		"modifications": stats.Modifications,
		"skipped":       stats.Skipped,
		"files":         e.registry.FileCount(),
		"methods":       e.registry.MethodCount(),
		"trashed":       e.ledger.TrashedCount(),
		"duration":      stats.Duration.Round(time.Millisecond),
	}).Info("mining complete")
	return stats, nil
}

// ProcessCommit applies every modification of c in order. A failing
// modification is logged and skipped; it never stops the commit.
func (e *Engine) ProcessCommit(c *models.Commit) CommitStats {
	var stats CommitStats
	for _, mod := range c.Modifications {
		if err := e.processModification(c, mod); err != nil {
			stats.Skipped++
			fields := logrus.Fields{
				"commit":  c.Hash,
				"message": firstLine(c.Message),
				"file":    mod.Filename,
			}
			if stderrors.Is(err, ErrMalformedName) {
				fields["inconsistency"] = InconsistencyMalformedName
				e.observer.Inconsistency(InconsistencyMalformedName)
			}
			e.log.WithFields(fields).WithError(err).Warn("modification skipped")
			e.observer.ModificationProcessed(mod.Kind, true)
			continue
		}
		stats.Processed++
		e.observer.ModificationProcessed(mod.Kind, false)
	}
	e.observer.CommitProcessed(c)
	return stats
}

// modContext carries one modification through reconciliation
type modContext struct {
	commit  *models.Commit
	mod     *models.Modification
	file    *FileEntity
	fresh   bool
	current map[string]bool
	log     logrus.FieldLogger
}

func (mc *modContext) event(linesChanged int) ChangeEvent {
	return ChangeEvent{
		CommitHash:   mc.commit.Hash,
		Author:       mc.commit.Author,
		Message:      mc.commit.Message,
		Timestamp:    mc.commit.Timestamp,
		LinesChanged: linesChanged,
	}
}

func (mc *modContext) ref() CommitRef {
	return CommitRef{Hash: mc.commit.Hash, Timestamp: mc.commit.Timestamp}
}

func (e *Engine) processModification(c *models.Commit, mod *models.Modification) error {
	mc := &modContext{
		commit: c,
		mod:    mod,
		log: e.log.WithFields(logrus.Fields{
			"commit": c.ShortHash(),
			"file":   mod.Filename,
		}),
	}

	switch mod.Kind {
	case models.ModificationAdd:
		if mod.NewPath == "" {
			return errors.ValidationErrorf("added file %q has no new path", mod.Filename)
		}
		if err := e.validateNames(mod.Methods); err != nil {
			return err
		}
		mc.fresh = e.registry.File(mod.NewPath) == nil
		mc.file = e.registry.GetOrCreate(mod.NewPath, mod.Filename)
		mc.current = nameSet(mod.Methods)
		for _, m := range mod.Methods {
			if _, err := e.upsert(mc, m.LongName, 0, false); err != nil {
				return err
			}
		}
		return nil

	case models.ModificationDelete:
		f := e.registry.Remove(mod.OldPath)
		if f == nil {
			e.inconsistency(mc.log, InconsistencyMissingFile, "deleted file was not tracked")
			return nil
		}
		e.ledger.Trash(mc.ref(), f.Methods)
		e.observer.MethodsTrashed(len(f.Methods))
		mc.log.WithField("methods", len(f.Methods)).Debug("file deleted")
		return nil

	case models.ModificationRename, models.ModificationModify:
		if mod.NewPath == "" {
			return errors.ValidationErrorf("modified file %q has no new path", mod.Filename)
		}
		for _, set := range [][]models.MethodDescriptor{mod.MethodsBefore, mod.Methods, mod.ChangedMethods} {
			if err := e.validateNames(set); err != nil {
				return err
			}
		}
		if mod.Kind == models.ModificationRename {
			mc.fresh = e.registry.File(mod.OldPath) == nil
			mc.file = e.registry.Rename(mod.OldPath, mod.NewPath, mod.Filename)
		} else {
			mc.fresh = e.registry.File(mod.NewPath) == nil
			mc.file = e.registry.GetOrCreate(mod.NewPath, mod.Filename)
		}
		mc.current = nameSet(mod.Methods)
		return e.reconcile(mc)

	default:
		return errors.ValidationErrorf("unknown modification kind %q", mod.Kind)
	}
}

func (e *Engine) validateNames(methods []models.MethodDescriptor) error {
	for _, m := range methods {
		if _, _, err := e.codec.Split(m.LongName); err != nil {
			return err
		}
	}
	return nil
}

// reconcile runs partition, scope rename detection, pairing and the safety net
func (e *Engine) reconcile(mc *modContext) error {
	mod := mc.mod
	p := PartitionMethods(mod.ChangedMethods, mod.MethodsBefore, mod.Methods)
	for _, m := range p.Inconsistent {
		e.inconsistency(mc.log.WithField("method", m.LongName), InconsistencyUntrackedTouch,
			"touched method is in neither the before nor the current set")
	}

	renames := e.detector.Detect(mod.Diff, p)
	if len(renames) > 0 {
		eligible := make(map[string]bool, len(p.BeforeWithoutObsolete))
		for _, n := range p.BeforeWithoutObsolete {
			eligible[n] = true
		}
		moved := e.registry.RelabelScopes(mc.file, renames, eligible)
		if moved > 0 {
			e.observer.MethodsRelabeled(RelabelScope, moved)
		}
		mc.log.WithFields(logrus.Fields{
			"renames": len(renames),
			"moved":   moved,
		}).Debug("scope rename detected")
	}

	if len(p.New) == 0 {
		e.removeObsolete(mc, descriptorNames(p.Obsolete))
		for _, u := range p.Updated {
			if err := e.updateExisting(mc, u, e.linesChanged(mc, u)); err != nil {
				return err
			}
		}
	} else if err := e.pairAndApply(mc, p, renames); err != nil {
		return err
	}

	if e.opts.SafetyNet {
		return e.safetyNet(mc)
	}
	return nil
}

// pairAndApply pairs before candidates (obsolete, then updated-before) with
// current candidates (new, then updated-current) and applies the outcome.
func (e *Engine) pairAndApply(mc *modContext, p Partition, renames ScopeRenames) error {
	mode, threshold := e.pairingMode(mc.mod)

	var before, current []Candidate
	for _, d := range p.Obsolete {
		before = append(before, e.candidate(d, mc.mod.SourceBefore, mode, OriginObsolete))
	}
	for _, d := range p.Updated {
		bd, ok := e.beforeDescriptor(mc.mod, d.LongName)
		if !ok {
			bd = models.MethodDescriptor{LongName: d.LongName}
		}
		before = append(before, e.candidate(bd, mc.mod.SourceBefore, mode, OriginUpdatedBefore))
	}
	for _, d := range p.New {
		current = append(current, e.candidate(d, mc.mod.SourceAfter, mode, OriginNew))
	}
	for _, d := range p.Updated {
		current = append(current, e.candidate(d, mc.mod.SourceAfter, mode, OriginUpdatedCurrent))
	}

	res := PairCandidates(before, current, threshold, e.scorer, renames)

	leftBefore := res.UnpairedBefore
	leftCurrent := res.UnpairedCurrent
	relabeledAway := make(map[string]bool)

	for _, pair := range res.Pairs {
		if pair.Before.Descriptor.LongName == pair.Current.Descriptor.LongName {
			lines := e.linesBetween(mc, pair.Before.Descriptor, pair.Current.Descriptor)
			if err := e.updateExisting(mc, pair.Current.Descriptor, lines); err != nil {
				return err
			}
			continue
		}
		if !e.replace(mc, pair) {
			leftBefore = append(leftBefore, pair.Before)
			leftCurrent = append(leftCurrent, pair.Current)
			continue
		}
		if pair.Before.Origin == OriginUpdatedBefore {
			relabeledAway[pair.Before.Descriptor.LongName] = true
		}
	}

	var obsolete []string
	for _, b := range leftBefore {
		if b.Origin == OriginObsolete {
			obsolete = append(obsolete, b.Descriptor.LongName)
		}
	}
	e.removeObsolete(mc, obsolete)

	for _, c := range leftCurrent {
		name := c.Descriptor.LongName
		switch {
		case c.Origin == OriginNew:
			if _, err := e.upsert(mc, name, 0, false); err != nil {
				return err
			}
		case relabeledAway[name]:
			if _, err := e.upsert(mc, name, 0, true); err != nil {
				return err
			}
		default:
			if err := e.updateExisting(mc, c.Descriptor, e.linesChanged(mc, c.Descriptor)); err != nil {
				return err
			}
		}
	}
	return nil
}

// pairingMode falls back to signatures when either source text is missing
func (e *Engine) pairingMode(mod *models.Modification) (PairingMode, float64) {
	if e.opts.Pairing == PairByBody && mod.SourceBefore != "" && mod.SourceAfter != "" {
		return PairByBody, e.opts.BodyThreshold
	}
	return PairBySignature, e.opts.SignatureThreshold
}

func (e *Engine) candidate(d models.MethodDescriptor, source string, mode PairingMode, origin CandidateOrigin) Candidate {
	sig, scope, _ := e.codec.Split(d.LongName)
	c := Candidate{
		Descriptor: d,
		Scope:      scope,
		Signature:  sig,
		Text:       sig,
		Origin:     origin,
	}
	if mode == PairByBody && d.EndLine > 0 {
		c.Text = bodyText(sig, methodBody(source, d))
	}
	return c
}

// replace relabels the identity behind pair.Before to pair.Current's name.
// It reports false when no unique identity was found, when a bare-name
// fallback match still exists under its own name after the commit, or when
// the target name is already taken by another live method.
func (e *Engine) replace(mc *modContext, pair Pair) bool {
	oldName := pair.Before.Descriptor.LongName
	newName := pair.Current.Descriptor.LongName
	log := mc.log.WithFields(logrus.Fields{
		"method": oldName,
		"target": newName,
		"score":  pair.Score,
	})

	lookup := e.registry.FindMethod(mc.file, oldName)
	if !lookup.Found() {
		err := errors.ReplaceNotFoundf("no unique live method matches %q", oldName).
			WithContext("ambiguous", lookup.Ambiguous)
		e.inconsistency(log.WithError(err), InconsistencyReplaceNotFound, "rename pairing dropped")
		return false
	}
	if !lookup.Exact && mc.current[lookup.Method.LongName()] {
		err := errors.ReplaceNotFoundf("fallback match %q is still present", lookup.Method.LongName())
		e.inconsistency(log.WithError(err), InconsistencyReplaceNotFound, "rename pairing dropped")
		return false
	}
	if other := e.registry.FindExact(mc.file, newName); other != nil && other != lookup.Method {
		err := errors.ReplaceNotFoundf("target %q is already a live method", newName)
		e.inconsistency(log.WithError(err), InconsistencyReplaceNotFound, "rename pairing dropped")
		return false
	}

	lines := e.linesBetween(mc, pair.Before.Descriptor, pair.Current.Descriptor)
	e.registry.RelabelMethod(lookup.Method, pair.Current.Scope, pair.Current.Signature, mc.event(lines))

	reason := RelabelPairing
	if pair.ScopeRename {
		reason = RelabelScope
	}
	e.observer.MethodsRelabeled(reason, 1)
	log.Debug("method relabeled")
	return true
}

// updateExisting appends an event to the identity behind d, creating one
// when none is found.
func (e *Engine) updateExisting(mc *modContext, d models.MethodDescriptor, lines int) error {
	created, err := e.upsert(mc, d.LongName, lines, false)
	if err != nil {
		return err
	}
	if created {
		e.inconsistency(mc.log.WithField("method", d.LongName), InconsistencyUpdatedNotFound,
			"updated method was not tracked, created")
	}
	return nil
}

// upsert records an event on the identity for longName or creates one.
// A bare-name fallback match is only taken over when its own long name is
// gone from the current state; it is then relabeled to longName.
func (e *Engine) upsert(mc *modContext, longName string, lines int, exactOnly bool) (bool, error) {
	ev := mc.event(lines)

	if m := e.registry.FindExact(mc.file, longName); m != nil {
		e.ledger.RecordChange(m, ev)
		e.observer.MethodsUpdated(1)
		return false, nil
	}

	if !exactOnly {
		lookup := e.registry.FindMethod(mc.file, longName)
		switch {
		case lookup.Ambiguous:
			err := errors.AmbiguousMatchf("several live methods share the name of %q", longName)
			mc.log.WithError(err).WithFields(logrus.Fields{
				"method":        longName,
				"inconsistency": InconsistencyAmbiguousMatch,
			}).Debug("treating method as new")
			e.observer.Inconsistency(InconsistencyAmbiguousMatch)
		case lookup.Found() && !mc.current[lookup.Method.LongName()]:
			sig, scope, err := e.codec.Split(longName)
			if err != nil {
				return false, err
			}
			mc.log.WithFields(logrus.Fields{
				"method": lookup.Method.LongName(),
				"target": longName,
			}).Debug("parameter list changed")
			e.registry.RelabelMethod(lookup.Method, scope, sig, ev)
			e.observer.MethodsRelabeled(RelabelParameters, 1)
			return false, nil
		}
	}

	if _, err := e.registry.CreateMethod(mc.file, longName, ev); err != nil {
		return false, err
	}
	e.observer.MethodsCreated(1)
	return true, nil
}

func (e *Engine) removeObsolete(mc *modContext, names []string) {
	if len(names) == 0 {
		return
	}
	removed := e.registry.RemoveMethods(mc.file, names)
	if len(removed) < len(names) {
		mc.log.WithFields(logrus.Fields{
			"expected": len(names),
			"removed":  len(removed),
		}).Debug("some obsolete methods were not tracked")
	}
	e.ledger.Trash(mc.ref(), removed)
	e.observer.MethodsTrashed(len(removed))
}

// safetyNet creates every current method still missing from the registry
func (e *Engine) safetyNet(mc *modContext) error {
	for _, d := range mc.mod.Methods {
		if e.registry.FindExact(mc.file, d.LongName) != nil {
			continue
		}
		if _, err := e.registry.CreateMethod(mc.file, d.LongName, mc.event(0)); err != nil {
			return err
		}
		e.observer.MethodsCreated(1)

		log := mc.log.WithField("method", d.LongName)
		if mc.fresh {
			// first sighting of the file, untracked methods are expected
			log.Debug("method created for untracked file")
			continue
		}
		e.inconsistency(log, InconsistencySafetyNet, "live method missing from registry, created")
	}
	return nil
}

// linesChanged compares an updated method with its unique before descriptor
func (e *Engine) linesChanged(mc *modContext, current models.MethodDescriptor) int {
	before, ok := e.beforeDescriptor(mc.mod, current.LongName)
	if !ok {
		err := errors.MissingBeforeMethodf("expected one before descriptor for %q", current.LongName)
		e.inconsistency(mc.log.WithField("method", current.LongName).WithError(err),
			InconsistencyMissingBeforeMethod, "changed lines unknown, recorded as 0")
		return 0
	}
	return e.linesBetween(mc, before, current)
}

func (e *Engine) linesBetween(mc *modContext, before, current models.MethodDescriptor) int {
	return e.differ.ChangedLines(
		methodBody(mc.mod.SourceBefore, before),
		methodBody(mc.mod.SourceAfter, current),
	)
}

func (e *Engine) beforeDescriptor(mod *models.Modification, longName string) (models.MethodDescriptor, bool) {
	var found models.MethodDescriptor
	n := 0
	for _, m := range mod.MethodsBefore {
		if m.LongName == longName {
			found = m
			n++
		}
	}
	return found, n == 1
}

func (e *Engine) inconsistency(log logrus.FieldLogger, kind, msg string) {
	log.WithField("inconsistency", kind).Warn(msg)
	e.observer.Inconsistency(kind)
}

func descriptorNames(ds []models.MethodDescriptor) []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.LongName
	}
	return names
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

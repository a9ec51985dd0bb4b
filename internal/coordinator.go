package internal

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileUpdateInput describes an edit made against a known revision of a file.
type FileUpdateInput struct {
	SourceFile     string
	Path           string
	Expected       ContentID     // id of Path the edit was based on
	Cited          plumbing.Hash // commit the caller read Path from
	LeaveConflicts bool
}

// reconcileState names the steps of ReconcileFileUpdate in logs.
type reconcileState string

const (
	stateClean       reconcileState = "clean"
	stateDirect      reconcileState = "attempting-direct-update"
	stateApplied     reconcileState = "applied"
	stateNeedsMerge  reconcileState = "needs-reconciliation"
	stateReconciling reconcileState = "reconciling"
	stateMerged      reconcileState = "merged"
	stateAborted     reconcileState = "aborted"
)

// Coordinator is the entry point for compound sync operations. Callers must
// serialize calls against one repository.
type Coordinator struct {
	store     Store
	cfg       *Config
	setter    TransportSetter
	revisions *RevisionStore
	guard     *CleanlinessGuard
	committer *CommitWriter
	merger    *MergeEngine
	updater   *OptimisticFileUpdater
	base      zerolog.Logger
	log       zerolog.Logger
}

type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger the coordinator and every component it owns
// write to, instead of the global one.
func WithLogger(l zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.base = l
	}
}

// WithTransportSetter replaces the transport setter derived from the config.
func WithTransportSetter(s TransportSetter) CoordinatorOption {
	return func(c *Coordinator) {
		c.setter = s
	}
}

func NewCoordinator(store Store, cfg *Config, opts ...CoordinatorOption) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	revisions := NewRevisionStore(store)
	guard := NewCleanlinessGuard(store)
	committer := NewCommitWriter(store, cfg.Author)

	c := &Coordinator{
		store:     store,
		cfg:       cfg,
		setter:    cfg.TransportSetter(),
		revisions: revisions,
		guard:     guard,
		committer: committer,
		merger:    NewMergeEngine(store, cfg.Author),
		updater:   NewOptimisticFileUpdater(store, guard, revisions, committer, cfg.CommitMessage),
		base:      log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.log = c.Logger("coordinator")
	c.revisions.log = c.Logger("revisions")
	c.committer.log = c.Logger("committer")
	c.merger.log = c.Logger("merge")
	c.updater.log = c.Logger("updater")
	return c
}

// Logger returns the coordinator's logger tagged with a component name.
func (c *Coordinator) Logger(component string) zerolog.Logger {
	return componentLogger(c.base, component)
}

// SyncWithRemote fetches the configured remote and merges the tracking branch
// of the current branch. It reports whether the merge fully applied. A remote
// that does not have the branch yet counts as in sync.
func (c *Coordinator) SyncWithRemote(ctx context.Context, leaveConflicts bool) (bool, error) {
	if err := c.guard.AssertClean(ctx); err != nil {
		return false, err
	}
	branch, err := c.store.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	if err := c.store.Fetch(ctx, c.cfg.Remote, c.setter); err != nil {
		return false, err
	}

	tracking := TrackingRef(c.cfg.Remote, branch)
	target, err := c.revisions.Resolve(ctx, tracking.String())
	if IsCode(err, CodeReferenceNotFound) {
		c.log.Info().Str("ref", tracking.String()).Msg("remote has no such branch, nothing to merge")
		return true, nil
	}
	if err != nil {
		return false, err
	}

	res, err := c.merger.Merge(ctx, target.Hash, leaveConflicts)
	if err != nil {
		return false, err
	}
	c.log.Info().Str("target", target.Short()).Stringer("outcome", res.Outcome).Msg("synced with remote")
	return res.Outcome.Applied(), nil
}

// SyncAndPublish syncs without leaving conflicts and pushes the current branch
// if the sync applied. A failed push is logged and reported as false; the
// local merge stands.
func (c *Coordinator) SyncAndPublish(ctx context.Context) (bool, error) {
	ok, err := c.SyncWithRemote(ctx, false)
	if err != nil || !ok {
		return ok, err
	}
	branch, err := c.store.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	if err := c.store.Push(ctx, c.cfg.Remote, branch, c.setter); err != nil {
		c.log.Warn().Err(err).Str("remote", c.cfg.Remote).Str("branch", branch).Msg("push failed")
		return false, nil
	}
	c.log.Info().Str("remote", c.cfg.Remote).Str("branch", branch).Msg("published")
	return true, nil
}

// UpdateIfUnchanged is the compare-and-swap update without reconciliation.
func (c *Coordinator) UpdateIfUnchanged(ctx context.Context, sourceFile, path string, expected ContentID) (bool, error) {
	return c.updater.UpdateIfUnchanged(ctx, sourceFile, path, expected)
}

// ReconcileFileUpdate applies an edit that may be based on an older revision.
// It tries a direct update first. If the tip moved on, the edit is replayed on
// an ephemeral branch rooted at the cited commit, the original tip is merged
// into it and the original branch is fast-forwarded to the result. The
// ephemeral branch is deleted on every exit path.
func (c *Coordinator) ReconcileFileUpdate(ctx context.Context, in FileUpdateInput) (applied bool, err error) {
	log := c.log.With().Str("path", in.Path).Logger()
	state := stateClean
	transition := func(next reconcileState) {
		log.Debug().Str("from", string(state)).Str("to", string(next)).Msg("reconcile")
		state = next
	}

	if err := c.guard.AssertClean(ctx); err != nil {
		return false, err
	}

	transition(stateDirect)
	ok, err := c.updater.UpdateIfUnchanged(ctx, in.SourceFile, in.Path, in.Expected)
	if err != nil {
		return false, err
	}
	if ok {
		transition(stateApplied)
		return true, nil
	}

	transition(stateNeedsMerge)
	originalTip, err := c.store.Head(ctx)
	if err != nil {
		return false, err
	}
	originalBranch, err := c.store.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	cited, err := c.revisions.Resolve(ctx, in.Cited.String())
	if err != nil {
		return false, err
	}

	ephemeral := EphemeralBranchName(in.Path, in.Expected)
	exists, err := c.store.BranchExists(ctx, ephemeral)
	if err != nil {
		return false, err
	}
	if exists {
		return false, newError(CodeInvariantViolation, "reconcile", "ephemeral branch %s already exists", ephemeral).
			WithDetail("branch", ephemeral)
	}

	if err := c.store.CreateBranch(ctx, ephemeral, cited.Hash); err != nil {
		return false, err
	}
	defer c.cleanup(ctx, log, originalBranch, ephemeral)

	if err := c.store.Checkout(ctx, ephemeral); err != nil {
		return false, err
	}

	transition(stateReconciling)
	ok, err = c.updater.UpdateIfUnchanged(ctx, in.SourceFile, in.Path, in.Expected)
	if err != nil {
		return false, err
	}
	if !ok {
		actual, _ := c.revisions.contentOrZero(ctx, in.Path, cited.Hash)
		return false, newError(CodeRevisionMismatch, "reconcile",
			"%s in %s is %s, not the expected %s (tip %s)",
			in.Path, cited.Hash, actual, in.Expected, originalTip.Hash).
			WithDetail("path", in.Path).
			WithDetail("cited", cited.Hash.String()).
			WithDetail("tip", originalTip.Hash.String())
	}

	res, err := c.merger.Merge(ctx, originalTip.Hash, false)
	if err != nil {
		return false, err
	}
	if !res.Outcome.Applied() {
		transition(stateAborted)
		if in.LeaveConflicts {
			return false, c.leaveConflictsOn(ctx, originalBranch, ephemeral)
		}
		return false, nil
	}
	transition(stateMerged)

	merged, err := c.store.Head(ctx)
	if err != nil {
		return false, err
	}
	if err := c.store.Checkout(ctx, originalBranch); err != nil {
		return false, err
	}
	if err := c.store.FastForward(ctx, merged.Hash); err != nil {
		if errors.Is(err, ErrFastForwardImpossible) {
			return false, newError(CodeInvariantViolation, "reconcile", "cannot fast-forward %s from %s to %s",
				originalBranch, originalTip.Short(), merged.Short())
		}
		return false, err
	}
	log.Info().Str("branch", originalBranch).Str("tip", merged.Short()).Msg("edit reconciled")
	return true, nil
}

// leaveConflictsOn replays the ephemeral tip onto the original branch so the
// conflict markers land where a human will look for them. The replay must
// conflict too; a clean result means the two merges disagreed.
func (c *Coordinator) leaveConflictsOn(ctx context.Context, originalBranch, ephemeral string) error {
	edit, err := c.store.Head(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Checkout(ctx, originalBranch); err != nil {
		return err
	}
	res, err := c.merger.Merge(ctx, edit.Hash, true)
	if err != nil {
		return err
	}
	if res.Outcome.Applied() {
		return newError(CodeInvariantViolation, "reconcile",
			"edit %s merged into %s as %s after conflicting on %s",
			edit.Short(), originalBranch, res.Outcome, ephemeral).
			WithDetail("branch", originalBranch).
			WithDetail("head", res.Head.String())
	}
	c.log.Info().
		Str("branch", originalBranch).
		Str("edit", edit.Short()).
		Stringer("outcome", res.Outcome).
		Int("conflicts", len(res.Conflicts)).
		Msg("conflicts left for resolution")
	return nil
}

// cleanup returns to the original branch and deletes the ephemeral one.
// Failures are logged and never replace the primary result.
func (c *Coordinator) cleanup(ctx context.Context, log zerolog.Logger, originalBranch, ephemeral string) {
	current, err := c.store.CurrentBranch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cleanup: reading current branch")
	}
	if current == ephemeral {
		if err := c.discardEphemeralWork(ctx); err != nil {
			log.Warn().Err(err).Str("branch", ephemeral).Msg("cleanup: discarding ephemeral changes")
		}
		if err := c.store.Checkout(ctx, originalBranch); err != nil {
			log.Warn().Err(err).Str("branch", originalBranch).Msg("cleanup: checkout")
			return
		}
	}
	if err := c.store.DeleteBranch(ctx, ephemeral); err != nil {
		log.Warn().Err(err).Str("branch", ephemeral).Msg("cleanup: delete branch")
		return
	}
	log.Debug().Str("branch", ephemeral).Msg("ephemeral branch deleted")
}

// discardEphemeralWork resets whatever an interrupted step left dirty on the
// ephemeral branch. Everything there was written by this process.
func (c *Coordinator) discardEphemeralWork(ctx context.Context) error {
	clean, err := c.store.IsClean(ctx)
	if err != nil || clean {
		return err
	}
	return c.merger.AbortConflictingMerge(ctx)
}

// CurrentTip returns the commit the current branch points to.
func (c *Coordinator) CurrentTip(ctx context.Context) (*Commit, error) {
	return c.store.Head(ctx)
}

// ContentIdentifierAt returns the id of path in commit.
func (c *Coordinator) ContentIdentifierAt(ctx context.Context, path string, commit plumbing.Hash) (ContentID, error) {
	return c.revisions.ContentIdentifierOf(ctx, path, commit)
}

// Resolve resolves a reference name or commit id.
func (c *Coordinator) Resolve(ctx context.Context, name string) (*Commit, error) {
	return c.revisions.Resolve(ctx, name)
}

// CopyCurrentFile copies the working tree content of path to destination.
func (c *Coordinator) CopyCurrentFile(ctx context.Context, path, destination string) error {
	return c.revisions.CopyContentAt(ctx, path, destination)
}

// SafelyCopyCurrentFile is CopyCurrentFile for callers holding a cited
// commit: it fails unless cited is already merged into the current tip.
func (c *Coordinator) SafelyCopyCurrentFile(ctx context.Context, path, destination string, cited plumbing.Hash) error {
	tip, err := c.store.Head(ctx)
	if err != nil {
		return err
	}
	merged, err := c.revisions.IsAncestorMerged(ctx, cited, tip.Hash)
	if err != nil {
		return err
	}
	if !merged {
		return newError(CodeRevisionMismatch, "copy "+path, "commit %s is not merged into the current tip %s", cited, tip.Short()).
			WithDetail("cited", cited.String()).
			WithDetail("tip", tip.Hash.String())
	}
	return c.revisions.CopyContentAt(ctx, path, destination)
}

var unsafeRefChars = regexp.MustCompile(`[^A-Za-z0-9._/-]+`)

// EphemeralBranchName derives the sandbox branch name for an edit of path
// based on expected.
func EphemeralBranchName(path string, expected ContentID) string {
	p := unsafeRefChars.ReplaceAllString(cleanPath(path), "_")
	p = strings.ReplaceAll(p, "..", "_")
	p = strings.Trim(strings.ReplaceAll(p, "//", "/"), "/.")
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = strings.TrimSuffix(strings.TrimPrefix(part, "."), ".lock")
	}
	return "sync/" + strings.Join(parts, "/") + "-" + expected.String()
}

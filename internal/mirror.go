package internal

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const MirrorStateFile = ".gitsync-mirror.yaml"

// MirrorEntry records the revision a mirrored copy was taken from.
type MirrorEntry struct {
	Base   string `yaml:"base"`
	Commit string `yaml:"commit"`
}

type mirrorState struct {
	Files map[string]MirrorEntry `yaml:"files"`
}

// Mirror keeps a directory of externally edited copies of repository files
// and pushes edits back through ReconcileFileUpdate.
type Mirror struct {
	dir    string
	coord  *Coordinator
	ignore *IgnoreMatcher
	state  mirrorState
	log    zerolog.Logger
}

func NewMirror(dir string, coord *Coordinator) (*Mirror, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve mirror dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	ignore, err := NewIgnoreMatcher(dir)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	m := &Mirror{
		dir:    dir,
		coord:  coord,
		ignore: ignore,
		state:  mirrorState{Files: make(map[string]MirrorEntry)},
		log:    GetLogger("mirror"),
	}
	if coord != nil {
		m.log = coord.Logger("mirror")
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mirror) Dir() string {
	return m.dir
}

func (m *Mirror) load() error {
	data, err := os.ReadFile(filepath.Join(m.dir, MirrorStateFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read mirror state: %w", err)
	}
	if err := yaml.Unmarshal(data, &m.state); err != nil {
		return wrapError(CodeConfigInvalid, "parse mirror state", err)
	}
	if m.state.Files == nil {
		m.state.Files = make(map[string]MirrorEntry)
	}
	return nil
}

func (m *Mirror) save() error {
	data, err := yaml.Marshal(&m.state)
	if err != nil {
		return fmt.Errorf("marshal mirror state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, MirrorStateFile), data, 0644); err != nil {
		return fmt.Errorf("write mirror state: %w", err)
	}
	return nil
}

// Entry returns the recorded base of path.
func (m *Mirror) Entry(path string) (MirrorEntry, bool) {
	e, ok := m.state.Files[path]
	return e, ok
}

func (m *Mirror) localPath(path string) (string, error) {
	p := cleanPath(path)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", newError(CodePathNotFound, "mirror", "path %q escapes the mirror", path)
	}
	return filepath.Join(m.dir, filepath.FromSlash(p)), nil
}

// Checkout copies path as committed at the tip into the mirror and records
// the revision it came from.
func (m *Mirror) Checkout(ctx context.Context, path string) error {
	local, err := m.localPath(path)
	if err != nil {
		return err
	}
	tip, err := m.coord.CurrentTip(ctx)
	if err != nil {
		return err
	}
	id, err := m.coord.ContentIdentifierAt(ctx, path, tip.Hash)
	if err != nil {
		return err
	}
	data, err := m.coord.store.ReadBlob(ctx, path, tip.Hash)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return wrapError(CodeIOFailure, "mirror "+path, err)
	}
	if err := os.WriteFile(local, data, 0644); err != nil {
		return wrapError(CodeIOFailure, "mirror "+path, err)
	}

	m.state.Files[cleanPath(path)] = MirrorEntry{Base: id.String(), Commit: tip.Hash.String()}
	m.log.Debug().Str("path", path).Str("base", id.String()).Str("commit", tip.Short()).Msg("checked out")
	return m.save()
}

// CheckoutAll mirrors every file of the tip that is not ignored.
func (m *Mirror) CheckoutAll(ctx context.Context) ([]string, error) {
	tip, err := m.coord.CurrentTip(ctx)
	if err != nil {
		return nil, err
	}
	files, err := m.coord.store.TrackedFiles(ctx, tip.Hash)
	if err != nil {
		return nil, err
	}
	var done []string
	for _, f := range files {
		if m.ignore.Match(f) {
			continue
		}
		if err := m.Checkout(ctx, f); err != nil {
			return done, err
		}
		done = append(done, f)
	}
	return done, nil
}

// Changed reports whether the mirrored copy differs from its recorded base.
func (m *Mirror) Changed(path string) (bool, error) {
	local, err := m.localPath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return false, wrapError(CodeIOFailure, "read "+local, err)
	}
	entry, ok := m.state.Files[cleanPath(path)]
	if !ok {
		return true, nil
	}
	return ContentIDOf(data).String() != entry.Base, nil
}

// Push reconciles the mirrored copy of path into the repository. Copies that
// did not change are skipped. A file that was never checked out is created,
// provided the tip does not have it yet.
func (m *Mirror) Push(ctx context.Context, path string, leaveConflicts bool) (bool, error) {
	path = cleanPath(path)
	local, err := m.localPath(path)
	if err != nil {
		return false, err
	}
	changed, err := m.Changed(path)
	if err != nil {
		return false, err
	}
	if !changed {
		return true, nil
	}

	in := FileUpdateInput{
		SourceFile:     local,
		Path:           path,
		LeaveConflicts: leaveConflicts,
	}
	if entry, ok := m.state.Files[path]; ok {
		base, err := ParseContentID(entry.Base)
		if err != nil {
			return false, wrapError(CodeConfigInvalid, "mirror state for "+path, err)
		}
		in.Expected = base
		in.Cited = plumbing.NewHash(entry.Commit)
	} else {
		tip, err := m.coord.CurrentTip(ctx)
		if err != nil {
			return false, err
		}
		in.Cited = tip.Hash
	}

	applied, err := m.coord.ReconcileFileUpdate(ctx, in)
	if err != nil {
		return false, err
	}
	if !applied {
		m.log.Warn().Str("path", path).Msg("edit not applied")
		return false, nil
	}
	return true, m.Checkout(ctx, path)
}

// PushAll pushes every changed, non-ignored file in the mirror and returns the
// paths that were applied.
func (m *Mirror) PushAll(ctx context.Context, leaveConflicts bool) ([]string, error) {
	paths, err := m.Files()
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, p := range paths {
		changed, err := m.Changed(p)
		if err != nil {
			return applied, err
		}
		if !changed {
			continue
		}
		ok, err := m.Push(ctx, p, leaveConflicts)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, p)
		}
	}
	return applied, nil
}

// Files lists the mirror's non-ignored files as repository paths.
func (m *Mirror) Files() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(m.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == m.dir {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || m.ignore.MatchDir(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.ignore.Match(p) {
			return nil
		}
		rel, err := filepath.Rel(m.dir, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, wrapError(CodeIOFailure, "walk mirror", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RepoPath maps an absolute file in the mirror to its repository path.
func (m *Mirror) RepoPath(abs string) (string, bool) {
	rel, err := filepath.Rel(m.dir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if m.ignore.Match(abs) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// IgnoresDir reports whether a directory of the mirror is skipped entirely.
func (m *Mirror) IgnoresDir(abs string) bool {
	return m.ignore.MatchDir(abs)
}

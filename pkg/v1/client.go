package v1

import (
	"context"
	"fmt"

	"github.com/4thel00z/gitsync/internal"
	"github.com/rs/zerolog"
)

// Client provides programmatic access to a synced repository.
type Client struct {
	repo  *internal.GitRepository
	coord *internal.Coordinator
	cfg   *internal.Config
}

// Open opens the repository containing dir.
func Open(dir string, opts ...Option) (*Client, error) {
	cc := newClientConfig(opts)

	root, err := internal.FindRepoRoot(dir)
	if err != nil {
		return nil, err
	}
	repo, err := internal.OpenRepository(root)
	if err != nil {
		return nil, err
	}
	return newClient(repo, cc)
}

// Init creates a repository with an empty root commit at dir and opens it.
func Init(dir string, opts ...Option) (*Client, error) {
	cc := newClientConfig(opts)

	cfg, err := cc.load(dir)
	if err != nil {
		return nil, err
	}
	cc.config = cfg

	repo, err := internal.InitRepository(dir, cc.branch, cfg.Author)
	if err != nil {
		return nil, err
	}
	return newClient(repo, cc)
}

func newClientConfig(opts []Option) *clientConfig {
	cc := &clientConfig{branch: internal.DefaultBranch, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

func (cc *clientConfig) load(root string) (*internal.Config, error) {
	if cc.config != nil {
		if err := cc.config.Validate(); err != nil {
			return nil, err
		}
		return cc.config, nil
	}
	return internal.LoadConfig(internal.ConfigPaths(root, cc.configFiles...)...)
}

func newClient(repo *internal.GitRepository, cc *clientConfig) (*Client, error) {
	cfg, err := cc.load(repo.Root())
	if err != nil {
		return nil, err
	}

	copts := []internal.CoordinatorOption{internal.WithLogger(cc.logger)}
	if cc.setter != nil {
		copts = append(copts, internal.WithTransportSetter(cc.setter))
	}

	return &Client{
		repo:  repo,
		coord: internal.NewCoordinator(repo, cfg, copts...),
		cfg:   cfg,
	}, nil
}

// Root is the working tree root.
func (c *Client) Root() string {
	return c.repo.Root()
}

// AddRemote registers url as the configured remote.
func (c *Client) AddRemote(url string) error {
	return c.repo.AddRemote(c.cfg.Remote, url)
}

// Tip returns the commit the current branch points to.
func (c *Client) Tip(ctx context.Context) (Commit, error) {
	tip, err := c.coord.CurrentTip(ctx)
	if err != nil {
		return Commit{}, err
	}
	return fromCommit(tip), nil
}

// ContentID returns the content id of path at rev. An empty rev means the
// current tip.
func (c *Client) ContentID(ctx context.Context, path, rev string) (string, error) {
	commit, err := c.resolve(ctx, rev)
	if err != nil {
		return "", err
	}
	id, err := c.coord.ContentIdentifierAt(ctx, path, commit.Hash)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Update commits source as path if path still has the expected content at
// the tip.
func (c *Client) Update(ctx context.Context, source, path, expected string) (bool, error) {
	id, err := parseExpected(expected)
	if err != nil {
		return false, err
	}
	return c.coord.UpdateIfUnchanged(ctx, source, path, id)
}

// Reconcile applies an edit that may be based on an older revision, merging
// it with whatever happened since.
func (c *Client) Reconcile(ctx context.Context, u FileUpdate) (bool, error) {
	id, err := parseExpected(u.Expected)
	if err != nil {
		return false, err
	}
	cited, err := c.resolve(ctx, u.Cited)
	if err != nil {
		return false, err
	}
	return c.coord.ReconcileFileUpdate(ctx, internal.FileUpdateInput{
		SourceFile:     u.Source,
		Path:           u.Path,
		Expected:       id,
		Cited:          cited.Hash,
		LeaveConflicts: u.LeaveConflicts,
	})
}

// Sync fetches the remote and merges it into the current branch.
func (c *Client) Sync(ctx context.Context, leaveConflicts bool) (bool, error) {
	return c.coord.SyncWithRemote(ctx, leaveConflicts)
}

// Publish syncs and then pushes the current branch.
func (c *Client) Publish(ctx context.Context) (bool, error) {
	return c.coord.SyncAndPublish(ctx)
}

// Copy copies the working tree content of path to destination.
func (c *Client) Copy(ctx context.Context, path, destination string) error {
	return c.coord.CopyCurrentFile(ctx, path, destination)
}

// SafeCopy is Copy that fails unless cited is merged into the tip.
func (c *Client) SafeCopy(ctx context.Context, path, destination, cited string) error {
	commit, err := c.resolve(ctx, cited)
	if err != nil {
		return err
	}
	return c.coord.SafelyCopyCurrentFile(ctx, path, destination, commit.Hash)
}

// Diff renders a unified diff of path between two revisions.
func (c *Client) Diff(ctx context.Context, path, from, to string) (string, error) {
	a, err := c.resolve(ctx, from)
	if err != nil {
		return "", err
	}
	b, err := c.resolve(ctx, to)
	if err != nil {
		return "", err
	}
	return c.coord.DiffContent(ctx, path, a.Hash, b.Hash)
}

// Status reports the branch, tip and working tree state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	st, err := c.coord.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Branch:          st.Branch,
		Tip:             fromCommit(st.Tip),
		Clean:           st.Clean,
		DirtyPaths:      st.DirtyPaths,
		MergeInProgress: st.MergeInProgress,
	}, nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

func (c *Client) resolve(ctx context.Context, rev string) (*internal.Commit, error) {
	if rev == "" {
		return c.coord.CurrentTip(ctx)
	}
	return c.coord.Resolve(ctx, rev)
}

func parseExpected(s string) (internal.ContentID, error) {
	if s == "" {
		return internal.ZeroContentID, nil
	}
	id, err := internal.ParseContentID(s)
	if err != nil {
		return id, fmt.Errorf("expected content: %w", err)
	}
	return id, nil
}

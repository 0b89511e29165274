package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

// GitConfig configures a GitSource.
type GitConfig struct {
	// Repository is the clone URL or a local repository path.
	Repository string `yaml:"repository"`

	// Branch is the branch to track (default: main).
	Branch string `yaml:"branch"`

	// Path is the rule document or directory inside the repository.
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	LocalPath string `yaml:"local_path"`

	// Depth limits the clone history; 0 clones everything.
	Depth int `yaml:"depth"`

	// PollInterval is how often the remote is checked for new commits (default: 30s).
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull (default: 30s).
	Timeout time.Duration `yaml:"timeout"`

	Auth GitAuthConfig `yaml:"auth"`
}

// CommitInfo describes the commit rules were loaded from.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
}

// GitSource loads rules from a Git repository and polls it for changes.
type GitSource struct {
	config *GitConfig
	parser *ruleset.Parser
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource creates a Git rule source. The repository is cloned on the first load.
func NewGitSource(cfg *GitConfig, parser *ruleset.Parser, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if _, err := authMethod(cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	c := *cfg
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.LocalPath == "" {
		c.LocalPath = filepath.Join(os.TempDir(), "fieldguard-rules")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if parser == nil {
		parser = ruleset.NewParser()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GitSource{
		config: &c,
		parser: parser,
		logger: logger.With("component", "rules.git", "repository", c.Repository),
	}, nil
}

// LoadRules clones the repository if needed and parses the rule path at HEAD.
func (s *GitSource) LoadRules(ctx context.Context) ([]engine.Rule, error) {
	if err := s.ensureCloned(ctx); err != nil {
		return nil, err
	}

	doc, err := s.parser.ParsePath(s.RulesPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", s.RulesPath(), err)
	}

	s.logger.Info("loaded rules from repository", "rule_count", len(doc.Rules))
	return doc.Rules, nil
}

// Watch polls the remote and sends an event for every pull that changes a
// rule document under the rule path. The channel is closed when ctx is cancelled.
func (s *GitSource) Watch(ctx context.Context) (<-chan engine.RuleEvent, error) {
	if err := s.ensureCloned(ctx); err != nil {
		return nil, err
	}

	events := make(chan engine.RuleEvent, 4)
	go func() {
		defer close(events)

		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				event, changed := s.poll(ctx)
				if !changed {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	s.logger.Info("rule repository watcher started", "poll_interval", s.config.PollInterval)
	return events, nil
}

// poll pulls once and reports whether the pull produced an event.
func (s *GitSource) poll(ctx context.Context) (engine.RuleEvent, bool) {
	from, to, changed, err := s.Pull(ctx)
	if err != nil {
		s.logger.Warn("rule repository pull failed", "error", err)
		return engine.RuleEvent{Path: s.config.Repository, Error: err}, true
	}
	if from == to {
		return engine.RuleEvent{}, false
	}
	for _, file := range changed {
		if s.touchesRules(file) {
			s.logger.Info("rule repository changed", "from", short(from), "to", short(to))
			return engine.RuleEvent{Type: engine.RuleEventModified, Path: to}, true
		}
	}
	s.logger.Debug("commit did not touch rule documents", "to", short(to))
	return engine.RuleEvent{}, false
}

// Pull fetches the tracked branch and returns the HEAD before and after
// along with the files that changed between them.
func (s *GitSource) Pull(ctx context.Context) (from, to string, changed []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return "", "", nil, fmt.Errorf("repository not initialized")
	}

	head, err := s.repo.Head()
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	from = head.Hash().String()

	worktree, err := s.repo.Worktree()
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := authMethod(s.config.Auth)
	if err != nil {
		return "", "", nil, err
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return "", "", nil, fmt.Errorf("failed to pull: %w", err)
	}

	head, err = s.repo.Head()
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to get new HEAD: %w", err)
	}
	to = head.Hash().String()
	if from == to {
		return from, to, nil, nil
	}

	changed, err = s.changedFiles(from, to)
	if err != nil {
		return "", "", nil, err
	}
	return from, to, changed, nil
}

// CurrentCommit returns the commit rules are loaded from.
func (s *GitSource) CurrentCommit() (*CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		SHA:       commit.Hash.String(),
		Author:    commit.Author.Name,
		Timestamp: commit.Author.When,
		Message:   strings.TrimSpace(commit.Message),
		Branch:    s.config.Branch,
	}, nil
}

// RulesPath is the rule document or directory inside the local clone.
func (s *GitSource) RulesPath() string {
	return filepath.Join(s.config.LocalPath, s.config.Path)
}

func (s *GitSource) ensureCloned(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		return nil
	}

	if _, err := os.Stat(filepath.Join(s.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		s.repo = repo
		return nil
	}

	if err := os.MkdirAll(s.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}
	auth, err := authMethod(s.config.Auth)
	if err != nil {
		return err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(cloneCtx, s.config.LocalPath, false, &gogit.CloneOptions{
		URL:           s.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Depth:         s.config.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	s.repo = repo
	s.logger.Info("cloned rule repository",
		"branch", s.config.Branch,
		"duration", time.Since(start),
	)
	return nil
}

func (s *GitSource) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := s.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := s.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// touchesRules reports whether a repository-relative file is a rule document under the rule path.
func (s *GitSource) touchesRules(file string) bool {
	if !ruleset.IsRuleFile(file) {
		return false
	}
	root := filepath.ToSlash(filepath.Clean(s.config.Path))
	if root == "." || root == "" {
		return true
	}
	file = filepath.ToSlash(file)
	return file == root || strings.HasPrefix(file, root+"/")
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

// FileSource loads rules from a YAML or JSON document, or from every
// document in a directory.
type FileSource struct {
	path     string
	parser   *ruleset.Parser
	debounce time.Duration
	logger   *slog.Logger
}

// NewFileSource creates a file-based rule source. A nil parser uses ruleset.NewParser().
func NewFileSource(path string, parser *ruleset.Parser, logger *slog.Logger) *FileSource {
	if parser == nil {
		parser = ruleset.NewParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:     path,
		parser:   parser,
		debounce: DefaultWatcherConfig().DebounceInterval,
		logger:   logger.With("component", "rules.file"),
	}
}

// WithDebounce sets the quiet period before a change is reported.
func (s *FileSource) WithDebounce(interval time.Duration) *FileSource {
	s.debounce = interval
	return s
}

// LoadRules parses the configured path.
func (s *FileSource) LoadRules(ctx context.Context) ([]engine.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.parser.ParsePath(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", s.path, err)
	}

	s.logger.Info("loaded rules from source",
		"path", s.path,
		"rule_count", len(doc.Rules),
	)
	return doc.Rules, nil
}

// Watch reports debounced changes to rule documents under the configured
// path. The channel is closed when ctx is cancelled.
func (s *FileSource) Watch(ctx context.Context) (<-chan engine.RuleEvent, error) {
	watcher, err := NewFileWatcher(&WatcherConfig{
		Path:             s.path,
		DebounceInterval: s.debounce,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	events := make(chan engine.RuleEvent, 16)
	go func() {
		defer close(events)
		if err := watcher.Run(ctx, events); err != nil {
			select {
			case events <- engine.RuleEvent{Path: s.path, Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return events, nil
}

package source

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

const nameRule = `rules:
  - ruleId: name
    conditions:
      - type: REQUIRED
        fieldId: name
`

const twoRules = `rules:
  - ruleId: name
    conditions:
      - type: REQUIRED
        fieldId: name
  - ruleId: email
    conditions:
      - type: REGEX
        fieldId: email
        value: "@"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func waitEvent(t *testing.T, events <-chan engine.RuleEvent) engine.RuleEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatal("events channel closed")
		}
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for rule event")
	}
	return engine.RuleEvent{}
}

func TestFileSource_LoadRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), nameRule)
	writeFile(t, filepath.Join(dir, "b.json"), `[{"ruleId": "age", "fieldId": "age", "operator": "GREATER_THAN", "value": 17}]`)

	rules, err := NewFileSource(dir, nil, nil).LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	if rules[0].RuleID != "name" || rules[1].RuleID != "age" {
		t.Errorf("rule IDs = %s, %s", rules[0].RuleID, rules[1].RuleID)
	}
}

func TestFileSource_LoadRulesMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil).LoadRules(context.Background())
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFileSource_WatchDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.yaml"), nameRule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewFileSource(dir, nil, nil).WithDebounce(20 * time.Millisecond)
	events, err := src.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "rules.yaml"), twoRules)

	event := waitEvent(t, events)
	if event.Error != nil {
		t.Fatalf("unexpected error event: %v", event.Error)
	}
	if filepath.Base(event.Path) != "rules.yaml" {
		t.Errorf("event path = %s, want rules.yaml", event.Path)
	}

	cancel()
	for range events {
	}
}

func TestFileSource_WatchSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, nameRule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := NewFileSource(path, nil, nil).WithDebounce(20 * time.Millisecond).Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "other.yaml"), nameRule)
	writeFile(t, path, twoRules)

	event := waitEvent(t, events)
	if filepath.Clean(event.Path) != filepath.Clean(path) {
		t.Errorf("event path = %s, want %s", event.Path, path)
	}
}

func TestFileSource_EngineHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, nameRule)

	src := NewFileSource(path, nil, nil).WithDebounce(20 * time.Millisecond)
	eng, err := engine.NewEngine(nil, nil, nil, engine.WithRuleSource(src))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	defer eng.Close()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, twoRules)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(eng.Rules()) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("engine has %d rules after file change, want 2", len(eng.Rules()))
}

func TestNewFileWatcher_RequiresPath(t *testing.T) {
	if _, err := NewFileWatcher(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewFileWatcher(&WatcherConfig{}, nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestDebouncer(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30 * time.Millisecond)

	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(120 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}

	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls after Stop = %d, want 1", got)
	}
}

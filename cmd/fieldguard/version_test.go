package main

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origGitCommit, origBuildDate := Version, GitCommit, BuildDate
	origFormat := versionFormat
	defer func() {
		Version, GitCommit, BuildDate = origVersion, origGitCommit, origBuildDate
		versionFormat = origFormat
	}()

	Version = "0.1.0-test"
	GitCommit = "abc123"
	BuildDate = "2026-03-01"

	tests := []struct {
		format  string
		want    []string
		wantErr bool
	}{
		{
			format: "text",
			want: []string{
				"fieldguard 0.1.0-test",
				"Git Commit: abc123",
				"Build Date: 2026-03-01",
				"Go Version: " + runtime.Version(),
				"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH,
			},
		},
		{
			format: "json",
			want: []string{
				`"version": "0.1.0-test"`,
				`"gitCommit": "abc123"`,
				`"platform": "` + runtime.GOOS + "/" + runtime.GOARCH + `"`,
			},
		},
		{format: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			versionFormat = tt.format
			buf := &bytes.Buffer{}
			versionCmd.SetOut(buf)
			defer versionCmd.SetOut(nil)

			err := versionCmd.RunE(versionCmd, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("RunE() should reject the format")
				}
				return
			}
			if err != nil {
				t.Fatalf("RunE() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("version output %q does not contain %q", buf.String(), want)
				}
			}
		})
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{"completion", "lint", "reports", "serve", "validate", "version"}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("root command is missing the --config flag")
	}
}

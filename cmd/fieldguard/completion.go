package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// completionWriters maps each supported shell to its cobra generator.
var completionWriters = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  (*cobra.Command).GenZshCompletion,
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	},
}

func completionShells() []string {
	shells := make([]string, 0, len(completionWriters))
	for shell := range completionWriters {
		shells = append(shells, shell)
	}
	sort.Strings(shells)
	return shells
}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for fieldguard commands and flags
(bash, fish, powershell or zsh).

  # current bash session
  source <(fieldguard completion bash)

  # zsh, once; restart the shell afterwards
  fieldguard completion zsh > "${fpath[1]}/_fieldguard"

  # fish
  fieldguard completion fish > ~/.config/fish/completions/fieldguard.fish

  # PowerShell, add the line to $PROFILE to keep it
  fieldguard completion powershell | Out-String | Invoke-Expression`,
	ValidArgs: completionShells(),
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, ok := completionWriters[args[0]]
		if !ok {
			return fmt.Errorf("unsupported shell %q", args[0])
		}
		return gen(cmd.Root(), commandOutput(cmd))
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

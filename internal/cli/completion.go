package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand prints a shell completion script. Script and notebook
// arguments complete to .py files, so both TFRM-001.py and
// .stepbook/TFRM-001.nb.py are offered.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for the given shell.

  $ source <(stepbook completion bash)
  $ stepbook completion zsh > "${fpath[1]}/_stepbook"
  $ stepbook completion fish | source
  PS> stepbook completion powershell | Out-String | Invoke-Expression

Completions for generate, export, graph, run and inspect offer Python files,
which covers both transformer scripts and generated notebooks.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
		},
	}
	return cmd
}

// completePython completes the single positional argument of a conversion
// command to .py files.
func completePython(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"py"}, cobra.ShellCompDirectiveFilterFileExt
}

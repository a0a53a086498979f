package cli

import (
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// subcommandsHeader marks a Long description that already lists its children.
const subcommandsHeader = "\n\nSubcommands:\n"

// walkCommands visits every command in the tree depth-first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong appends the available subcommands to a parent command's
// Long description. Calling it twice leaves the description unchanged.
func enrichParentLong(cmd *cobra.Command) {
	if !cmd.HasSubCommands() || cmd == cmd.Root() || strings.Contains(cmd.Long, subcommandsHeader) {
		return
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString(subcommandsHeader)

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			_, _ = tw.Write([]byte("  " + sub.Name() + "\t" + sub.Short + "\n"))
		}
	}
	_ = tw.Flush()

	cmd.Long = strings.TrimRight(sb.String(), "\n")
}

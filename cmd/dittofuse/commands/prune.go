package commands

import (
	"fmt"

	"github.com/marmos91/dittofuse/pkg/ctl"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune <path>",
	Short: "Drop unreferenced nodes from a mounted volume's cache",
	Long: `Ask a mounted volume to evict every cached node that has no references.

path may be any file or directory inside the mount. The request fails with
"device or resource busy" while another file on the volume is open.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pruned, remaining, err := ctl.Prune(args[0])
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned: %d\nremaining: %d\n", pruned, remaining)
		return nil
	},
}

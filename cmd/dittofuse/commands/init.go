package commands

import (
	"fmt"

	"github.com/marmos91/dittofuse/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample DittoFUSE configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittofuse/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dittofuse init

  # Initialize with custom path
  dittofuse init --config /etc/dittofuse/config.yaml

  # Force overwrite existing config
  dittofuse init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Choose the metadata and content stores in the configuration file")
	fmt.Fprintln(out, "  2. Mount the volume with: dittofuse mount /mnt/point")
	fmt.Fprintf(out, "  3. Or specify custom config: dittofuse mount --config %s /mnt/point\n", configPath)
	return nil
}

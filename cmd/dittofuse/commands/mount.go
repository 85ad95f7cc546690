package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/config"
	dittoServer "github.com/marmos91/dittofuse/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	mountDebug bool
	mountOpts  mountOptions
)

var mountCmd = &cobra.Command{
	Use:   "mount [flags] <mountpoint>",
	Short: "Mount the volume",
	Long: `Mount the configured volume on mountpoint and serve it until it is
unmounted (fusermount -u) or the process receives SIGINT or SIGTERM.

Flags override the configuration file, which overrides built-in defaults.
Masks and ids accept octal (leading 0 or 0o) or decimal values.

Examples:
  # Mount with the default configuration
  dittofuse mount /mnt/ditto

  # Read-only, group readable, owned by uid 1000
  dittofuse mount -o ro,umask=027,uid=1000 /mnt/ditto

  # Foreground debugging with logs on stderr
  dittofuse mount -d /mnt/ditto`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func init() {
	registerMountFlags(mountCmd.Flags())
}

func registerMountFlags(f *pflag.FlagSet) {
	f.Bool("allow_other", false, "Allow other users to access the mount")
	f.Bool("allow_root", false, "Allow root to access the mount")
	f.Bool("auto_unmount", false, "Unmount automatically when the process exits")
	f.Bool("ro", false, "Mount read-only")
	f.Bool("noexec", false, "Disallow execution of binaries")
	f.Bool("noatime", false, "Do not update access times")
	f.Bool("dirsync", false, "Make directory updates synchronous")
	f.Bool("sync", false, "Make all I/O synchronous")
	f.String("umask", "", "Permission mask for files and directories")
	f.String("dmask", "", "Permission mask for directories")
	f.String("fmask", "", "Permission mask for files")
	f.String("uid", "", "Owner of every node (default: mounting user)")
	f.String("gid", "", "Group of every node (default: mounting group)")
	f.VarP(&mountOpts, "options", "o", "Comma separated mount options (ro, noatime, umask=, dmask=, fmask=, uid=, gid=)")
	f.BoolVarP(&mountDebug, "debug", "d", false, "Trace requests and log to stderr")
}

func runMount(cmd *cobra.Command, args []string) error {
	mountpoint, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if fi, err := os.Stat(mountpoint); err != nil {
		return fmt.Errorf("mountpoint: %w", err)
	} else if !fi.IsDir() {
		return fmt.Errorf("mountpoint %s is not a directory", mountpoint)
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := applyMountFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := applyMountOptions(cfg, mountOpts); err != nil {
		return err
	}
	applyDebug(cfg, mountDebug, os.Getenv("DITTOFUSE_DEBUG") == "1")

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("DittoFUSE %s mounting %q on %s", Version, cfg.Volume.Name, mountpoint)
	logger.Info("Configuration loaded from %s", getConfigSource(GetConfigFile()))

	// Metrics first so the stores pick up their collectors.
	metricsResult := config.InitializeMetrics(cfg)

	vol, err := config.OpenVolume(ctx, cfg, metricsResult)
	if err != nil {
		return err
	}

	srv := dittoServer.New(vol)
	srv.SetStopTimeout(cfg.Server.ShutdownTimeout)
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
		srv.SetMetricsServer(metricsResult.Server)
	}

	adapters, err := config.CreateAdapters(cfg, mountpoint, metricsResult.FUSEMetrics)
	if err != nil {
		_ = vol.Unmount()
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = vol.Unmount()
			return err
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Received %v, unmounting %s", sig, mountpoint)
		cancel()
		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case err := <-serverDone:
		if err != nil {
			return err
		}
	}

	logger.Info("%s unmounted", mountpoint)
	return nil
}

// applyMountFlags copies explicitly set flags over the configuration.
func applyMountFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	boolFlags := map[string]*bool{
		"allow_other":  &cfg.Mount.AllowOther,
		"allow_root":   &cfg.Mount.AllowRoot,
		"auto_unmount": &cfg.Mount.AutoUnmount,
		"ro":           &cfg.Volume.ReadOnly,
		"noexec":       &cfg.Mount.NoExec,
		"noatime":      &cfg.Volume.NoAtime,
		"dirsync":      &cfg.Mount.DirSync,
		"sync":         &cfg.Mount.Sync,
	}
	for name, dst := range boolFlags {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	maskFlags := map[string]*string{
		"umask": &cfg.Volume.Umask,
		"dmask": &cfg.Volume.Dmask,
		"fmask": &cfg.Volume.Fmask,
	}
	for name, dst := range maskFlags {
		if !fs.Changed(name) {
			continue
		}
		v, _ := fs.GetString(name)
		if err := setMask(dst, v); err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
	}

	idFlags := map[string]*int64{
		"uid": &cfg.Volume.UID,
		"gid": &cfg.Volume.GID,
	}
	for name, dst := range idFlags {
		if !fs.Changed(name) {
			continue
		}
		v, _ := fs.GetString(name)
		id, err := parseID(v)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		*dst = id
	}
	return nil
}

// applyDebug implements -d and DITTOFUSE_DEBUG=1.
func applyDebug(cfg *config.Config, flag, env bool) {
	if flag {
		cfg.Logging.Output = "stderr"
		cfg.Logging.Level = "DEBUG"
		if cfg.Mount.Debug < 1 {
			cfg.Mount.Debug = 1
		}
	}
	if env {
		cfg.Logging.Level = "DEBUG"
		cfg.Mount.Debug = 2
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.ConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

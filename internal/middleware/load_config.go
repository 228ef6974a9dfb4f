package middleware

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/obsimg/obsimg/internal/config"
)

// LoadConfig resolves the effective configuration (defaults, then the YAML
// file, then changed flags on top) and stores it in the command context
// under CtxKeyConfig.
func LoadConfig(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = config.Merge(cfg, flagOverrides(cmd))

	ctx := context.WithValue(cmd.Context(), CtxKeyConfig, &cfg)
	cmd.SetContext(ctx)

	return next(cmd, args)
}

// flagOverrides collects only the flags the user actually set, so unset
// flags never clobber file values with their defaults.
func flagOverrides(cmd *cobra.Command) config.Config {
	var over config.Config

	flags := cmd.Flags()
	if flags.Changed("download-url") {
		over.DownloadURL, _ = flags.GetString("download-url")
	}
	if flags.Changed("image-name") {
		over.ImageName, _ = flags.GetString("image-name")
	}
	if flags.Changed("arch") {
		over.Arch, _ = flags.GetString("arch")
	}
	if flags.Changed("target-dir") {
		over.TargetDir, _ = flags.GetString("target-dir")
	}
	if flags.Changed("profile") {
		over.Profile, _ = flags.GetString("profile")
	}
	if flags.Changed("extension") {
		over.Extension, _ = flags.GetString("extension")
	}
	if flags.Changed("checksum-extension") {
		over.ChecksumExtension, _ = flags.GetString("checksum-extension")
	}
	if flags.Changed("conditions-wait-time") {
		over.ConditionsWaitTime, _ = flags.GetInt("conditions-wait-time")
	}
	if flags.Changed("no-color") {
		over.NoColor, _ = flags.GetBool("no-color")
	}

	return over
}

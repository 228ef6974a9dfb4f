package internal

import (
	"github.com/spf13/cobra"

	"github.com/obsimg/obsimg/internal/config"
	"github.com/obsimg/obsimg/internal/download"
	"github.com/obsimg/obsimg/internal/middleware"
)

func NewDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the newest image build once its conditions pass",
		Long: `Resolve the newest build of the configured image, evaluate the package
version and license conditions against its metadata and download the image
together with its checksum verification.

Examples:
  obsimg download --image-name openSUSE-Leap-15.6-EC2
  obsimg download --conditions '[{"package_name":"kernel-default","version":"5.14.21"}]'
  obsimg download --conditions-file ./conditions.json --conditions-wait-time 1800`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := middleware.Get[*config.Config](cmd, middleware.CtxKeyConfig)
			if err != nil {
				return err
			}

			opts, err := downloadOptions(cmd)
			if err != nil {
				return err
			}

			d, err := download.New(cfg, opts, nil)
			if err != nil {
				return err
			}
			return d.Execute(cmd.Context())
		},
	}

	cmd.Flags().String("conditions", "", "Inline JSON array of package and image conditions")
	cmd.Flags().String("conditions-file", "", "Path to a JSON file with package and image conditions")
	cmd.Flags().Int("conditions-wait-time", 0, "Seconds to keep re-checking failing conditions before giving up")
	cmd.Flags().String("extension", "", "Only consider image artifacts with this extension")
	cmd.Flags().String("checksum-extension", "", "Only consider checksum sidecars with this extension")
	cmd.Flags().StringSlice("disallow-license", nil, "Fail conditions while a package with this license is in the image (repeatable)")
	cmd.Flags().StringSlice("disallow-package", nil, "Fail conditions while a package matching this glob is in the image (repeatable)")
	cmd.Flags().Bool("wait-for-new-image", false, "Block until a build different from the downloaded one is published")
	cmd.Flags().Bool("report", false, "Print the condition report as JSON after the run")

	return cmd
}

func downloadOptions(cmd *cobra.Command) (download.Options, error) {
	var opts download.Options

	flags := cmd.Flags()
	opts.ConditionsJSON, _ = flags.GetString("conditions")
	opts.ConditionsFile, _ = flags.GetString("conditions-file")
	opts.DeniedLicenses, _ = flags.GetStringSlice("disallow-license")
	opts.DeniedPackages, _ = flags.GetStringSlice("disallow-package")
	opts.WaitForNewImage, _ = flags.GetBool("wait-for-new-image")
	opts.PrintReport, _ = flags.GetBool("report")

	if flags.Changed("conditions-wait-time") {
		seconds, _ := flags.GetInt("conditions-wait-time")
		opts.ConditionsWaitTime = &seconds
	}
	if flags.Changed("extension") {
		opts.Extension, _ = flags.GetString("extension")
	}
	if flags.Changed("checksum-extension") {
		opts.ChecksumExtension, _ = flags.GetString("checksum-extension")
	}

	return opts, nil
}

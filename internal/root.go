package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsimg/obsimg/internal/errs"
	"github.com/obsimg/obsimg/internal/logger"
)

const Version = "1.2.0"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obsimg",
		Short: "Download and verify images from an Open Build Service repository",
		Long: `obsimg watches an Open Build Service download repository for a named image,
resolves the newest build, checks package version and license conditions
against the image metadata and downloads the image once they pass.`,
		Example: `obsimg download --image-name openSUSE-Leap-15.6-EC2`,
		Run: func(cmd *cobra.Command, _ []string) {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				fmt.Printf("Version: %s\n", Version)
				return
			}
			_ = cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			quiet, _ := cmd.Flags().GetBool("quiet")
			noColor, _ := cmd.Flags().GetBool("no-color")

			level := "info"
			if quiet {
				level = "error"
			}
			if debug {
				level = "debug"
			}

			logger.Configure(logger.Options{Level: level, Color: !noColor})
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolP("version", "v", false, "Print version information")

	flags := cmd.PersistentFlags()
	flags.StringP("config", "C", "", "Path to the configuration file (default ~/.config/obsimg/config.yaml)")
	flags.String("download-url", "", "URL of the download repository")
	flags.String("image-name", "", "Name of the image to watch")
	flags.String("arch", "", "Image architecture (default x86_64)")
	flags.String("profile", "", "Multibuild profile name appended to the version")
	flags.String("target-dir", "", "Directory the image is downloaded to")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("quiet", false, "Only log errors")

	RegisterSubCommands(cmd)

	return cmd
}

// Execute runs the CLI. Errors are rendered as "Kind: message" unless debug
// mode is on, in which case the full error chain is printed.
func Execute() error {
	root := NewRootCmd()

	if os.Getenv("COMP_LINE") != "" ||
		(len(os.Args) > 1 && strings.HasPrefix(os.Args[1], "__complete")) {
		return root.Execute()
	}

	if err := root.Execute(); err != nil {
		debug, _ := root.PersistentFlags().GetBool("debug")
		if debug {
			logger.LogError("%+v", err)
		} else {
			logger.LogError("%s", errs.Format(err))
		}
		return err
	}
	return nil
}

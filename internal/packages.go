package internal

import (
	"github.com/spf13/cobra"

	"github.com/obsimg/obsimg/internal/config"
	"github.com/obsimg/obsimg/internal/middleware"
	"github.com/obsimg/obsimg/internal/packages"
)

func NewPackagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Inspect the package metadata of the newest image build",
	}

	chain := middleware.UseMiddlewareChain(middleware.LoadConfig)
	cmd.AddCommand(chain(newPackagesListCmd)())
	cmd.AddCommand(chain(newPackagesShowCmd)())

	return cmd
}

func newPackagesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all packages in the newest image build",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := middleware.Get[*config.Config](cmd, middleware.CtxKeyConfig)
			if err != nil {
				return err
			}

			var opts packages.ListOptions
			opts.JSON, _ = cmd.Flags().GetBool("json")
			opts.FilterLicenses, _ = cmd.Flags().GetStringSlice("filter-license")
			opts.FilterPackage, _ = cmd.Flags().GetString("filter-package")

			m, err := packages.New(cfg, nil)
			if err != nil {
				return err
			}
			return m.List(cmd.Context(), opts)
		},
	}

	cmd.Flags().Bool("json", false, "Emit the package list as JSON")
	cmd.Flags().StringSlice("filter-license", nil, "Only list packages with this license (repeatable)")
	cmd.Flags().String("filter-package", "", "Only list packages whose name matches this glob")
	return cmd
}

func newPackagesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <package>",
		Short: "Show version, release, arch and license of one package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := middleware.Get[*config.Config](cmd, middleware.CtxKeyConfig)
			if err != nil {
				return err
			}

			m, err := packages.New(cfg, nil)
			if err != nil {
				return err
			}
			return m.Show(cmd.Context(), args[0])
		},
	}
}

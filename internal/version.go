package internal

import (
	"github.com/spf13/cobra"

	"github.com/obsimg/obsimg/internal/config"
	"github.com/obsimg/obsimg/internal/middleware"
	"github.com/obsimg/obsimg/internal/packages"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image-version",
		Short: "Print version and build number of the newest image build",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := middleware.Get[*config.Config](cmd, middleware.CtxKeyConfig)
			if err != nil {
				return err
			}

			m, err := packages.New(cfg, nil)
			if err != nil {
				return err
			}
			return m.Version(cmd.Context())
		},
	}
}

package internal

import (
	"github.com/spf13/cobra"

	"github.com/obsimg/obsimg/internal/middleware"
)

var defaultCommands = []middleware.CommandFactory{
	middleware.UseMiddlewareChain(middleware.LoadConfig)(NewDownloadCmd),
	middleware.UseMiddlewareChain(middleware.LoadConfig)(NewVersionCmd),
	NewPackagesCmd,
}

func RegisterSubCommands(cmd *cobra.Command) {
	for _, factory := range defaultCommands {
		cmd.AddCommand(factory())
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "conquest",
		Short:         "Conquest real-time strategy game server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	// 为空时从工作目录向上查找 configs/conf.yml
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	root.AddCommand(newServeCmd(&cfgFile), newMigrateCmd(&cfgFile))
	return root
}

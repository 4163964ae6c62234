// Package config implements the command that prints the effective settings.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danfengzi/obs-lv2/internal/conf"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: "Print the settings obs-lv2 would run with after merging the config " +
			"file, OBSLV2_ environment variables and flags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.MarshalYAML(settings)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path := conf.ConfigFileUsed(); path != "" {
				fmt.Fprintf(out, "# loaded from %s\n", path)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digital-drip/ddrip-deploy/config"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
)

func newInitCmd() *cobra.Command {
	var system, force bool
	var output string
	cmd := &cobra.Command{
		Use:   "init",
		Short: i18n.T("cli.init.short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				p, err := config.GetConfigPath(system)
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf(i18n.T("cli.init.exists"), path)
			}
			c := config.Default()
			if err := config.WriteConfigFile(&c, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.init.wrote", path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, i18n.T("cli.init.flag.system"))
	cmd.Flags().BoolVar(&force, "force", false, i18n.T("cli.init.flag.force"))
	cmd.Flags().StringVarP(&output, "output", "o", "", i18n.T("cli.init.flag.output"))
	return cmd
}

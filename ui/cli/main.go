// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/digital-drip/ddrip-deploy/buildvars"
	"github.com/digital-drip/ddrip-deploy/config"
	"github.com/digital-drip/ddrip-deploy/core/db"
	"github.com/digital-drip/ddrip-deploy/internal/logging"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
)

var version = "dev"   // set by the linker
var gitCommit = "dev" // short commit SHA, set at build time
var buildDate = ""    // RFC3339, set at build time

var cfgFile string
var verbose bool

// Execute runs the root command. main handles the exit code.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds a fresh command tree. Tests call it once per case.
func NewRootCmd() *cobra.Command {
	i18n.Init(os.Getenv("DDRIP_LANGUAGE"))
	cmd := &cobra.Command{
		Use:           "ddrip-deploy [stage] task...",
		Short:         i18n.T("cli.root.short"),
		Long:          i18n.T("cli.root.long"),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetOutput(cmd.ErrOrStderr())
			if verbose {
				logging.SetDebug(true)
				db.SetDebug(true)
			}
			return nil
		},
		RunE: runTasks,
	}
	cmd.Version = compositeVersion(resolveBuildVersion(nil))

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", i18n.T("cli.flag.config"))
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, i18n.T("cli.flag.verbose"))
	cmd.PersistentFlags().StringP("ssh.identity_file", "i", "", i18n.T("cli.flag.identity"))
	cmd.PersistentFlags().String("ssh.known_hosts", "", i18n.T("cli.flag.known_hosts"))
	cmd.PersistentFlags().String("history.dsn", "", i18n.T("cli.flag.history_dsn"))
	cmd.PersistentFlags().String("history.type", "sqlite", i18n.T("cli.flag.history_type"))
	cmd.PersistentFlags().String("log.level", "info", i18n.T("cli.flag.log_level"))
	cmd.PersistentFlags().String("language", "en", i18n.T("cli.flag.language"))
	addRunFlags(cmd)

	cmd.AddCommand(
		newTasksCmd(),
		newShowCmd(),
		newHistoryCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration for cmd and applies its log level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := getConfigPathFromCli(cmd)
	if err != nil {
		return config.Config{}, err
	}
	c, used, err := config.Load(cmd, path)
	if err != nil {
		return c, fmt.Errorf(i18n.T("cli.config.error"), err)
	}
	if c.Language != "" && c.Language != i18n.GetLang() {
		i18n.SetLang(c.Language)
	}
	if !verbose && c.Log.Level != "" {
		if err := logging.SetLevel(c.Log.Level); err != nil {
			logging.Warnf("ignoring log.level: %v", err)
		}
	}
	if used == "" {
		logging.Debugf("no config file found, using built-in recipe")
	} else {
		logging.Debugf("using config %s", used)
	}
	return c, nil
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") || cfgFile == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf(i18n.T("cli.config.not_found"), err)
	}
	path := cfgFile
	return &path, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("cli.version.short"),
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

func compositeVersion(v, c, d string) string {
	out := v
	if c != "" && c != "dev" {
		out += " (" + c + ")"
	}
	if d != "" {
		out += " built: " + d
	}
	return out
}

// resolveBuildVersion picks the best-known version, commit and build date.
// A nil info reads the running binary's build info.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info == nil {
		if local, ok := debug.ReadBuildInfo(); ok {
			info = local
		}
	}
	if info == nil {
		return resolvedVersion, resolvedCommit, resolvedDate
	}
	if resolvedVersion == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		resolvedVersion = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if s.Value != "" && resolvedCommit == "dev" {
				resolvedCommit = s.Value
				if len(resolvedCommit) > 7 {
					resolvedCommit = resolvedCommit[:7]
				}
			}
		case "vcs.time":
			if s.Value != "" && resolvedDate == "" {
				resolvedDate = s.Value
			}
		}
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}

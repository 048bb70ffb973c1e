// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/digital-drip/ddrip-deploy/config"
	"github.com/digital-drip/ddrip-deploy/core/db"
	"github.com/digital-drip/ddrip-deploy/core/deploy"
	"github.com/digital-drip/ddrip-deploy/core/task"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
	"github.com/digital-drip/ddrip-deploy/internal/logging"
)

var dryRun bool
var onlyHosts []string

type executor interface {
	task.Executor
	io.Closer
}

// newExecutor is swapped in tests.
var newExecutor = func(c config.Config, loginUser string, out io.Writer) executor {
	if dryRun {
		return deploy.DryRunExecutor{Out: out}
	}
	return deploy.NewSSHExecutor(deploy.Config{
		User:                  loginUser,
		Port:                  c.SSH.Port,
		IdentityFile:          c.SSH.IdentityFile,
		Passphrase:            promptPassphrase,
		KnownHostsFile:        c.SSH.KnownHosts,
		InsecureIgnoreHostKey: c.SSH.InsecureIgnoreHostKey,
		Timeout:               c.SSH.Timeout,
	})
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, i18n.T("cli.flag.dry_run"))
	cmd.Flags().StringSliceVar(&onlyHosts, "hosts", nil, i18n.T("cli.flag.hosts"))
	cmd.Flags().Int("ssh.max_hosts", 0, i18n.T("cli.flag.max_hosts"))
	cmd.Flags().Bool("ssh.insecure_ignore_host_key", false, i18n.T("cli.flag.insecure"))
}

func runTasks(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rc, err := c.Recipe()
	if err != nil {
		return err
	}
	reg, err := task.DefaultRegistry(rc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	exec := newExecutor(c, rc.Settings().User, out)
	defer func() {
		if cerr := exec.Close(); cerr != nil {
			logging.Warnf("closing connections: %v", cerr)
		}
	}()

	opts := []task.Option{
		task.WithOutput(out),
		task.WithMaxHosts(c.SSH.MaxHosts),
		task.WithOperator(operatorName()),
	}
	if len(onlyHosts) > 0 {
		opts = append(opts, task.WithHosts(onlyHosts...))
	}
	if c.History.Enabled {
		store, err := db.Open(ctx, c.History.Type, c.History.DSN)
		if err != nil {
			logging.Warnf(i18n.T("cli.history.disabled"), err)
		} else {
			defer store.Close()
			opts = append(opts, task.WithRecorder(store))
		}
	}

	return task.NewRunner(rc, reg, exec, opts...).Invoke(ctx, args...)
}

func operatorName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// promptPassphrase asks for an identity passphrase on the terminal.
func promptPassphrase(path string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf(i18n.T("cli.passphrase.no_terminal"), deploy.ErrPassphraseRequired, path)
	}
	fmt.Fprint(os.Stderr, i18n.T("cli.passphrase.prompt", path))
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf(i18n.T("cli.passphrase.read_failed"), err)
	}
	return pass, nil
}

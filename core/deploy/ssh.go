// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/digital-drip/ddrip-deploy/core/model"
	"github.com/digital-drip/ddrip-deploy/core/security"
	"github.com/digital-drip/ddrip-deploy/internal/logging"
)

// DefaultTimeout bounds the TCP connect and SSH handshake.
const DefaultTimeout = 10 * time.Second

// Config controls how SSHExecutor connects.
type Config struct {
	// User is the login user for servers that do not name one.
	User string
	// Port is used for servers without an explicit port; 0 means 22.
	Port int
	// IdentityFile is a private key path. When empty only the agent is used.
	IdentityFile string
	// Passphrase is asked for when IdentityFile is encrypted.
	Passphrase func(path string) ([]byte, error)
	// KnownHostsFile defaults to ~/.ssh/known_hosts.
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

// sshAgentGetter is swapped in tests.
var sshAgentGetter = getSSHAgent

// SSHExecutor runs commands over SSH, keeping one connection per
// user@host:port for the life of the executor.
type SSHExecutor struct {
	cfg Config

	authOnce sync.Once
	auth     []ssh.AuthMethod
	authErr  error

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHExecutor returns an executor; no connection is made until Run.
func NewSSHExecutor(cfg Config) *SSHExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &SSHExecutor{cfg: cfg, clients: map[string]*ssh.Client{}}
}

// Run executes command on srv and returns its output. A non-zero exit is
// reported as *ExitError.
func (e *SSHExecutor) Run(ctx context.Context, srv model.Server, command string) (model.CommandResult, error) {
	var res model.CommandResult
	client, err := e.client(ctx, srv)
	if err != nil {
		return res, err
	}
	session, err := client.NewSession()
	if err != nil {
		// The cached connection may have died; drop it so the next Run redials.
		e.forget(srv)
		return res, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	logging.Debugf("[%s] running %q", srv.Host, command)
	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		session.Close()
		return res, ctx.Err()
	case err = <-done:
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitStatus = exitErr.ExitStatus()
			return res, &ExitError{Status: res.ExitStatus, Stderr: res.Stderr}
		}
		return res, fmt.Errorf("remote command failed: %w", err)
	}
	return res, nil
}

// Close closes every cached connection.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for key, c := range e.clients {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(e.clients, key)
	}
	return errors.Join(errs...)
}

func (e *SSHExecutor) target(srv model.Server) (user, addr string) {
	user, addr = srv.Address(e.cfg.Port)
	if user == "" {
		user = e.cfg.User
	}
	return user, addr
}

func (e *SSHExecutor) forget(srv model.Server) {
	user, addr := e.target(srv)
	key := user + "@" + addr
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[key]; ok {
		c.Close()
		delete(e.clients, key)
	}
}

func (e *SSHExecutor) client(ctx context.Context, srv model.Server) (*ssh.Client, error) {
	user, addr := e.target(srv)
	if user == "" {
		return nil, fmt.Errorf("no login user for %s: set the user setting or use user@host", srv.Host)
	}
	key := user + "@" + addr

	// Holding the lock while dialing serialises connects to distinct hosts,
	// so check the cache, release, dial, and re-check.
	e.mu.Lock()
	if c, ok := e.clients[key]; ok {
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	c, err := e.dial(ctx, user, addr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.clients[key]; ok {
		c.Close()
		return existing, nil
	}
	e.clients[key] = c
	return c, nil
}

func (e *SSHExecutor) dial(ctx context.Context, user, addr string) (*ssh.Client, error) {
	auth, err := e.authMethods()
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := e.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	// Remember why the host key was rejected; the handshake error text is
	// not stable enough to classify.
	var hostKeyErr error
	config := &ssh.ClientConfig{
		User: user,
		Auth: auth,
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			if err := hostKeyCallback(hostname, remote, key); err != nil {
				hostKeyErr = classifyHostKeyError(hostname, key, err)
				return hostKeyErr
			}
			return nil
		},
		Timeout: e.cfg.Timeout,
	}

	dialer := net.Dialer{Timeout: e.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(e.cfg.Timeout))
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if hostKeyErr != nil {
			return nil, hostKeyErr
		}
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("%w: %s@%s: %w", ErrAuthFailed, user, addr, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	logging.Debugf("connected to %s@%s", user, addr)
	return ssh.NewClient(clientConn, chans, reqs), nil
}

func classifyHostKeyError(hostname string, key ssh.PublicKey, err error) error {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) == 0 {
			return fmt.Errorf("%w for %s (%s %s); add it to known_hosts", ErrUnknownHostKey, hostname, key.Type(), ssh.FingerprintSHA256(key))
		}
		return fmt.Errorf("%w for %s: presented %s %s; this could be a man-in-the-middle attack", ErrHostKeyMismatch, hostname, key.Type(), ssh.FingerprintSHA256(key))
	}
	return err
}

func (e *SSHExecutor) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if e.cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := strings.TrimSpace(e.cfg.KnownHostsFile)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known_hosts path not set and home dir unavailable: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

// authMethods prefers the identity file and falls back to the agent. It is
// computed once so an encrypted key prompts for its passphrase only once.
func (e *SSHExecutor) authMethods() ([]ssh.AuthMethod, error) {
	e.authOnce.Do(func() {
		var methods []ssh.AuthMethod
		if e.cfg.IdentityFile != "" {
			signer, err := e.loadIdentity()
			if err != nil {
				e.authErr = err
				return
			}
			methods = append(methods, ssh.PublicKeys(signer))
		}
		if ag := sshAgentGetter(); ag != nil {
			methods = append(methods, ssh.PublicKeysCallback(ag.Signers))
		}
		if len(methods) == 0 {
			e.authErr = fmt.Errorf("%w (no identity file configured and no ssh agent found)", ErrNoAuthMethod)
			return
		}
		e.auth = methods
	})
	return e.auth, e.authErr
}

func (e *SSHExecutor) loadIdentity() (ssh.Signer, error) {
	pem, err := os.ReadFile(e.cfg.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("unable to parse private key %s: %w", e.cfg.IdentityFile, err)
	}
	if e.cfg.Passphrase == nil {
		return nil, ErrPassphraseRequired
	}
	pass, err := e.cfg.Passphrase(e.cfg.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	secret := security.Secret(pass)
	defer secret.Zero()
	err = secret.Use(func(b []byte) error {
		var perr error
		signer, perr = ssh.ParsePrivateKeyWithPassphrase(pem, b)
		return perr
	})
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt private key %s: %w", e.cfg.IdentityFile, err)
	}
	return signer, nil
}

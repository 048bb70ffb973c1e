// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownHostKey     = errors.New("unknown host key")
	ErrHostKeyMismatch    = errors.New("host key mismatch")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrUnreachable        = errors.New("host unreachable")
	ErrNoAuthMethod       = errors.New("no authentication method available")
	ErrPassphraseRequired = errors.New("private key is encrypted and no passphrase was provided")
)

// ExitError reports a remote command that ran but exited non-zero.
type ExitError struct {
	Status int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("remote command exited with status %d", e.Status)
	}
	return fmt.Sprintf("remote command exited with status %d: %s", e.Status, msg)
}

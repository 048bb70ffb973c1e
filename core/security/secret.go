// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package security

import (
	"encoding/json"
	"fmt"
	"io"
)

const redacted = "[SECRET]"

// Secret holds sensitive bytes. Formatting and JSON encoding never reveal
// the content.
type Secret []byte

func (s Secret) String() string { return redacted }

// Format redacts every verb, including %#v and %x.
func (s Secret) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, redacted) }

// MarshalJSON redacts the secret.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// Use calls fn with the underlying bytes, not a copy.
func (s Secret) Use(fn func([]byte) error) error { return fn([]byte(s)) }

// Zero overwrites the secret in place.
func (s Secret) Zero() {
	for i := range s {
		s[i] = 0
	}
}

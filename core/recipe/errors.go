// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package recipe

import "errors"

var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrVariableCycle   = errors.New("variable reference cycle")
	ErrUnknownStage    = errors.New("unknown stage")
	ErrInvalidRole     = errors.New("invalid role declaration")
)

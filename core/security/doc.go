// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package security wraps sensitive bytes, such as identity passphrases, so
// they are redacted when printed and can be wiped after use.
package security

// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package recipe holds the declarative side of a deployment: variables with
// lazy ${name} expansion, role declarations and the stages that set them.
// The built-in recipe for the ddrip application is returned by Default.
package recipe

// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db stores the history of dispatched task commands. It uses Bun
// over database/sql and supports sqlite (the default), postgres and mysql.
// Schema changes are embedded SQL migrations applied on Open.
package db

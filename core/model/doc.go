// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.
// Package model defines the data models shared by the recipe, task runner,
// remote executors and the run history store. These are plain structs with a
// few helpers and no behaviour of their own.
package model

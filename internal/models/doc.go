// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package models defines the HTTP API's request and response shapes.
//
// Request structs carry both json tags for decoding and validate tags for
// the validation boundary; they convert to engine types via ToEngine once
// validated. Wire field names match the engine's own JSON tags so the
// synchronous API and the async event stream describe feedback and states
// identically.
//
// Every endpoint responds with the APIResponse envelope: a status string,
// the payload under data, error details under error, and timing metadata.
package models

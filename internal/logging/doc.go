// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package logging provides the process-wide zerolog logger and its
// surrounding plumbing: context-carried request and correlation IDs, an
// slog.Handler bridge for libraries that speak log/slog, and sanitizers
// for client-supplied strings.
//
// Initialize once at startup, then log through the package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("component", "engine").Msg("policy store opened")
//
// Handlers that carry a request context should log through Ctx so the
// request and correlation IDs land on every line:
//
//	logging.Ctx(ctx).Info().Str("user_id", userID).Msg("feedback applied")
//
// Log chains must terminate with Msg or Send; an unterminated chain is
// silently dropped.
//
// Components that hold their own zerolog.Logger (the engine, the stores,
// the retriever) receive one derived from this package via WithComponent,
// so the whole process shares a single sink and level.
package logging

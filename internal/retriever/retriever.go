// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package retriever supplies recommendation candidates for a requested
// emotional transition. The HTTP retriever queries an external similarity
// index; the static retriever scores a fixed in-process catalog for
// development and for deployments that run without an index.
package retriever

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/engine"
)

// New builds the retriever selected by cfg.Mode.
func New(cfg config.RetrieverConfig, logger zerolog.Logger) (engine.Retriever, error) {
	switch cfg.Mode {
	case config.RetrieverModeHTTP:
		return NewHTTP(cfg, logger), nil
	case config.RetrieverModeStatic:
		if cfg.CatalogPath != "" {
			return NewStaticFromFile(cfg.CatalogPath)
		}
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown retriever mode %q", cfg.Mode)
	}
}

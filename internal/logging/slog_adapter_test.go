// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
	logger := slog.New(handler)

	logger.Info("service started",
		slog.String("service", "http"),
		slog.Int("port", 8080),
		slog.Bool("ready", true),
		slog.Duration("startup", 150*time.Millisecond),
	)

	out := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"service":"http"`,
		`"port":8080`,
		`"ready":true`,
		`"message":"service started"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSlogHandlerLevelMapping(t *testing.T) {
	// The debug case needs the global gate lowered below the info default.
	SetLevel(zerolog.TraceLevel)
	t.Cleanup(func() { Init(DefaultConfig()) })

	cases := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, `"level":"debug"`},
		{slog.LevelInfo, `"level":"info"`},
		{slog.LevelWarn, `"level":"warn"`},
		{slog.LevelError, `"level":"error"`},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))
		logger.Log(context.Background(), tc.level, "mapped")
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("level %v output %q missing %q", tc.level, buf.String(), tc.want)
		}
	}
}

func TestSlogHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	logger.With(slog.String("supervisor", "root")).
		WithGroup("service").
		Info("restarted", slog.String("name", "hub"))

	out := buf.String()
	if !strings.Contains(out, `"supervisor":"root"`) {
		t.Errorf("output %q missing carried attr", out)
	}
	if !strings.Contains(out, `"service.name":"hub"`) {
		t.Errorf("output %q missing group-prefixed attr", out)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	handler := NewSlogHandlerWithLogger(zerolog.New(nil).Level(zerolog.WarnLevel))

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(info) = true with warn-level backend, want false")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(error) = false with warn-level backend, want true")
	}
}

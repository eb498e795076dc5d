// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestWatermillLoggerWritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	wm := NewWatermillLogger(logger).With(watermill.LogFields{"component": "router"})
	wm.Info("handler started", watermill.LogFields{"topic": "feedback.received"})

	out := buf.String()
	for _, want := range []string{
		`"component":"router"`,
		`"topic":"feedback.received"`,
		`"message":"handler started"`,
		`"level":"info"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestWatermillLoggerError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	wm := NewWatermillLogger(logger)
	wm.Error("publish failed", errors.New("broker down"), watermill.LogFields{"topic": TopicPolicyUpdated})

	out := buf.String()
	if !strings.Contains(out, `"error":"broker down"`) {
		t.Errorf("log output %q missing error field", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("log output %q missing error level", out)
	}
}

func TestWatermillLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	wm := NewWatermillLogger(logger)
	wm.Debug("noisy internal detail", nil)
	wm.Trace("noisier internal detail", nil)

	if got := buf.Len(); got != 0 {
		t.Errorf("debug and trace wrote %d bytes at info level, want 0", got)
	}
}

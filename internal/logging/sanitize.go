// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package logging

import "strings"

// maxFieldRunes caps sanitized field length. Long enough for any
// legitimate identifier or user agent, short enough to keep a hostile
// payload from bloating log storage.
const maxFieldRunes = 256

// SanitizeField makes a client-supplied string safe to embed in a log
// line. Control characters are removed so crafted input cannot inject
// fake log records, and overlong values are truncated.
func SanitizeField(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	n := 0
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if n == maxFieldRunes {
			b.WriteString("...")
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// MaskID masks an identifier for logs where the full value is not
// needed, keeping enough of both ends to correlate with other records.
// Short values mask entirely.
func MaskID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 8 {
		return "***"
	}
	return id[:4] + "..." + id[len(id)-4:]
}

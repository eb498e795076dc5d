// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package models

import (
	"github.com/affectlab/resonate/internal/engine"
)

// EmotionalStateInput is one measured emotional state as submitted by a
// client. The zero value is a valid neutral state.
type EmotionalStateInput struct {
	Valence    float64 `json:"valence" validate:"gte=-1,lte=1"`
	Arousal    float64 `json:"arousal" validate:"gte=-1,lte=1"`
	Stress     float64 `json:"stress" validate:"gte=0,lte=1"`
	Confidence float64 `json:"confidence,omitempty" validate:"gte=0,lte=1"`
}

// ToEngine converts the input to the engine's state type.
func (s EmotionalStateInput) ToEngine() engine.EmotionalState {
	return engine.EmotionalState{
		Valence:    s.Valence,
		Arousal:    s.Arousal,
		Stress:     s.Stress,
		Confidence: s.Confidence,
	}
}

// DesiredStateInput is the client's goal state for one recommendation
// cycle. Intensity defaults to moderate when omitted.
type DesiredStateInput struct {
	TargetValence float64 `json:"target_valence" validate:"gte=-1,lte=1"`
	TargetArousal float64 `json:"target_arousal" validate:"gte=-1,lte=1"`
	TargetStress  float64 `json:"target_stress" validate:"gte=0,lte=1"`
	Intensity     string  `json:"intensity,omitempty" validate:"omitempty,oneof=subtle moderate significant"`
}

// ToEngine converts the input to the engine's desired-state type.
func (s DesiredStateInput) ToEngine() engine.DesiredState {
	return engine.DesiredState{
		TargetValence: s.TargetValence,
		TargetArousal: s.TargetArousal,
		TargetStress:  s.TargetStress,
		Intensity:     engine.Intensity(s.Intensity),
	}
}

// RecommendationsRequest is the body of POST /api/v1/recommendations.
type RecommendationsRequest struct {
	UserID  string              `json:"user_id" validate:"required,max=128"`
	Current EmotionalStateInput `json:"current"`
	Desired DesiredStateInput   `json:"desired"`
	Limit   int                 `json:"limit,omitempty" validate:"omitempty,gte=1,lte=100"`
}

// ToEngine converts the request to an engine ranking request. The request
// ID is attached by the handler, not the client.
func (r RecommendationsRequest) ToEngine(requestID string) engine.RankRequest {
	return engine.RankRequest{
		UserID:    r.UserID,
		Current:   r.Current.ToEngine(),
		Desired:   r.Desired.ToEngine(),
		Limit:     r.Limit,
		RequestID: requestID,
	}
}

// FeedbackRequest is the body of POST /api/v1/feedback. A rating of zero
// means unrated; 1 through 5 are star ratings.
type FeedbackRequest struct {
	UserID         string              `json:"user_id" validate:"required,max=128"`
	ContentID      string              `json:"content_id" validate:"required,max=256"`
	StateBefore    EmotionalStateInput `json:"state_before"`
	StateAfter     EmotionalStateInput `json:"state_after"`
	Desired        DesiredStateInput   `json:"desired"`
	Completed      bool                `json:"completed"`
	Rating         int                 `json:"rating" validate:"gte=0,lte=5"`
	WatchedSeconds float64             `json:"watched_seconds" validate:"gte=0"`
	TotalSeconds   float64             `json:"total_seconds" validate:"gte=0"`
}

// ToEngine converts the request to the engine's feedback type.
func (r FeedbackRequest) ToEngine() engine.Feedback {
	return engine.Feedback{
		UserID:         r.UserID,
		ContentID:      r.ContentID,
		StateBefore:    r.StateBefore.ToEngine(),
		StateAfter:     r.StateAfter.ToEngine(),
		Desired:        r.Desired.ToEngine(),
		Completed:      r.Completed,
		Rating:         r.Rating,
		WatchedSeconds: r.WatchedSeconds,
		TotalSeconds:   r.TotalSeconds,
	}
}

// QValueQuery carries the query parameters of
// GET /api/v1/users/{userID}/qvalue.
type QValueQuery struct {
	State   string `json:"state" validate:"required,statekey"`
	Content string `json:"content" validate:"required,max=256"`
}

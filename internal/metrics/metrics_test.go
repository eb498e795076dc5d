// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package metrics

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// Collectors live on the default registry, so tests assert deltas rather
// than absolute values and run serially.

func TestRecordAPIRequest(t *testing.T) {
	counter := APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200")
	before := testutil.ToFloat64(counter)

	RecordAPIRequest("GET", "/api/v1/stats", "200", 25*time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/stats", "200", 40*time.Millisecond)

	got := testutil.ToFloat64(counter) - before
	if got != 2 {
		t.Errorf("api_requests_total delta = %v, want 2", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 1 {
		t.Errorf("active requests delta after inc = %v, want 1", got)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 0 {
		t.Errorf("active requests delta after dec = %v, want 0", got)
	}
}

func TestRecordRateLimitHit(t *testing.T) {
	counter := APIRateLimitHits.WithLabelValues("api")
	before := testutil.ToFloat64(counter)

	RecordRateLimitHit("api")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("rate limit hits delta = %v, want 1", got)
	}
}

func TestRecordRankRequest(t *testing.T) {
	okCounter := EngineRankRequests.WithLabelValues("ok")
	degradedBefore := testutil.ToFloat64(EngineDegradedRetrievals)
	okBefore := testutil.ToFloat64(okCounter)

	RecordRankRequest("ok", 5*time.Millisecond, false)
	RecordRankRequest("ok", 8*time.Millisecond, true)

	if got := testutil.ToFloat64(okCounter) - okBefore; got != 2 {
		t.Errorf("rank ok delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(EngineDegradedRetrievals) - degradedBefore; got != 1 {
		t.Errorf("degraded retrievals delta = %v, want 1", got)
	}
}

func TestRecordRankRequestOutcomes(t *testing.T) {
	outcomes := []string{"validation_error", "retriever_unavailable", "error"}
	for _, outcome := range outcomes {
		counter := EngineRankRequests.WithLabelValues(outcome)
		before := testutil.ToFloat64(counter)

		RecordRankRequest(outcome, time.Millisecond, false)

		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("rank %s delta = %v, want 1", outcome, got)
		}
	}
}

func TestRankDurationHistogram(t *testing.T) {
	var before dto.Metric
	if err := EngineRankDuration.Write(&before); err != nil {
		t.Fatalf("write histogram: %v", err)
	}

	RecordRankRequest("ok", 30*time.Millisecond, false)
	RecordRankRequest("ok", 50*time.Millisecond, false)

	var after dto.Metric
	if err := EngineRankDuration.Write(&after); err != nil {
		t.Fatalf("write histogram: %v", err)
	}

	if got := after.GetHistogram().GetSampleCount() - before.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("rank duration sample count delta = %d, want 2", got)
	}
	sum := after.GetHistogram().GetSampleSum() - before.GetHistogram().GetSampleSum()
	if sum < 0.079 || sum > 0.081 {
		t.Errorf("rank duration sample sum delta = %v, want 0.08", sum)
	}
}

func TestRecordFeedback(t *testing.T) {
	syncApplied := EngineFeedback.WithLabelValues("sync", "applied")
	asyncApplied := EngineFeedback.WithLabelValues("async", "applied")
	syncBefore := testutil.ToFloat64(syncApplied)
	asyncBefore := testutil.ToFloat64(asyncApplied)

	RecordFeedback("sync", "applied", 3*time.Millisecond)
	RecordFeedback("async", "applied", time.Millisecond)
	RecordFeedback("async", "applied", time.Millisecond)

	if got := testutil.ToFloat64(syncApplied) - syncBefore; got != 1 {
		t.Errorf("sync applied delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(asyncApplied) - asyncBefore; got != 2 {
		t.Errorf("async applied delta = %v, want 2", got)
	}
}

func TestRecordPolicyUpdate(t *testing.T) {
	var rewardBefore, tdBefore dto.Metric
	if err := EngineReward.Write(&rewardBefore); err != nil {
		t.Fatalf("write reward histogram: %v", err)
	}
	if err := EngineTDErrorAbs.Write(&tdBefore); err != nil {
		t.Fatalf("write td error histogram: %v", err)
	}

	RecordPolicyUpdate(0.6, -0.25)
	RecordPolicyUpdate(-0.4, 0.15)

	var rewardAfter, tdAfter dto.Metric
	if err := EngineReward.Write(&rewardAfter); err != nil {
		t.Fatalf("write reward histogram: %v", err)
	}
	if err := EngineTDErrorAbs.Write(&tdAfter); err != nil {
		t.Fatalf("write td error histogram: %v", err)
	}

	if got := rewardAfter.GetHistogram().GetSampleCount() - rewardBefore.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("reward sample count delta = %d, want 2", got)
	}
	rewardSum := rewardAfter.GetHistogram().GetSampleSum() - rewardBefore.GetHistogram().GetSampleSum()
	if rewardSum < 0.199 || rewardSum > 0.201 {
		t.Errorf("reward sample sum delta = %v, want 0.2", rewardSum)
	}
	tdSum := tdAfter.GetHistogram().GetSampleSum() - tdBefore.GetHistogram().GetSampleSum()
	if tdSum < 0.399 || tdSum > 0.401 {
		t.Errorf("td error sample sum delta = %v, want 0.4 from absolute values", tdSum)
	}
}

func TestUpdateEngineGauges(t *testing.T) {
	UpdateEngineGauges(120, 45)

	if got := testutil.ToFloat64(EngineQTableEntries); got != 120 {
		t.Errorf("engine_qtable_entries = %v, want 120", got)
	}
	if got := testutil.ToFloat64(EngineExperiences); got != 45 {
		t.Errorf("engine_experience_records = %v, want 45", got)
	}
}

func TestRecordEventPublish(t *testing.T) {
	published := EventsPublished.WithLabelValues("feedback.received")
	failed := EventsPublishErrors.WithLabelValues("feedback.received")
	pubBefore := testutil.ToFloat64(published)
	errBefore := testutil.ToFloat64(failed)

	RecordEventPublish("feedback.received", nil)
	RecordEventPublish("feedback.received", errors.New("stream unavailable"))

	if got := testutil.ToFloat64(published) - pubBefore; got != 1 {
		t.Errorf("published delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - errBefore; got != 1 {
		t.Errorf("publish errors delta = %v, want 1", got)
	}
}

func TestEventCounters(t *testing.T) {
	consumed := testutil.ToFloat64(EventsConsumed)
	processed := testutil.ToFloat64(EventsProcessed)
	deduplicated := testutil.ToFloat64(EventsDeduplicated)
	parseFailed := testutil.ToFloat64(EventsParseFailed)

	RecordEventConsume()
	RecordEventProcessed()
	RecordEventDeduplicated()
	RecordEventParseFailed()
	RecordEventProcessing(2 * time.Millisecond)

	if got := testutil.ToFloat64(EventsConsumed) - consumed; got != 1 {
		t.Errorf("consumed delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventsProcessed) - processed; got != 1 {
		t.Errorf("processed delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventsDeduplicated) - deduplicated; got != 1 {
		t.Errorf("deduplicated delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventsParseFailed) - parseFailed; got != 1 {
		t.Errorf("parse failed delta = %v, want 1", got)
	}
}

func TestWebSocketMetrics(t *testing.T) {
	SetWSConnections(3)
	if got := testutil.ToFloat64(WSConnections); got != 3 {
		t.Errorf("websocket_connections = %v, want 3", got)
	}
	SetWSConnections(0)
	if got := testutil.ToFloat64(WSConnections); got != 0 {
		t.Errorf("websocket_connections = %v, want 0", got)
	}

	sent := testutil.ToFloat64(WSMessagesSent)
	dropped := testutil.ToFloat64(WSMessagesDropped)

	RecordWSMessageSent()
	RecordWSMessageDropped()

	if got := testutil.ToFloat64(WSMessagesSent) - sent; got != 1 {
		t.Errorf("sent delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(WSMessagesDropped) - dropped; got != 1 {
		t.Errorf("dropped delta = %v, want 1", got)
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3-test")

	gauge := AppInfo.WithLabelValues("1.2.3-test", runtime.Version())
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("app_info = %v, want 1", got)
	}
}

func TestUpdateUptime(t *testing.T) {
	UpdateUptime(time.Now().Add(-2 * time.Second))

	got := testutil.ToFloat64(AppUptime)
	if got < 2 || got > 60 {
		t.Errorf("app_uptime_seconds = %v, want between 2 and 60", got)
	}
}

func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/health", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint() error = %v", err)
	}
	for _, p := range problems {
		t.Logf("metric lint problem: %s %s", p.Metric, p.Text)
	}
}

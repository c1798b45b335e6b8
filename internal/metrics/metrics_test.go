// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordErrorReported(t *testing.T) {
	before := testutil.ToFloat64(ErrorsReported.WithLabelValues("network"))
	RecordErrorReported("network")
	after := testutil.ToFloat64(ErrorsReported.WithLabelValues("network"))

	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordTeardownStep(t *testing.T) {
	before := testutil.ToFloat64(SessionTeardownSteps.WithLabelValues("logout", "failed"))
	RecordTeardownStep("logout", false)
	after := testutil.ToFloat64(SessionTeardownSteps.WithLabelValues("logout", "failed"))

	if after != before+1 {
		t.Errorf("expected failed teardown counter to increment, got %v -> %v", before, after)
	}
}

func TestBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"anything", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := breakerStateValue(tt.state); got != tt.want {
				t.Errorf("breakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestRecordToast(t *testing.T) {
	before := testutil.ToFloat64(ToastsSuppressed.WithLabelValues("tracking"))
	RecordToast("tracking", false)
	after := testutil.ToFloat64(ToastsSuppressed.WithLabelValues("tracking"))

	if after != before+1 {
		t.Errorf("expected suppressed toast counter to increment, got %v -> %v", before, after)
	}
}

func TestRecordPipelineRequest(t *testing.T) {
	before := testutil.ToFloat64(PipelineRequestsTotal.WithLabelValues("GET", "5xx"))
	RecordPipelineRequest("GET", "5xx", 25*time.Millisecond)
	after := testutil.ToFloat64(PipelineRequestsTotal.WithLabelValues("GET", "5xx"))

	if after != before+1 {
		t.Errorf("expected request counter to increment, got %v -> %v", before, after)
	}
}

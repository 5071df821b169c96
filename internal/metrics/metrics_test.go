package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordWSEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		err    error
		status string
	}{
		{name: "success", event: "send_message", status: "ok"},
		{name: "failure", event: "join_ticket", err: errors.New("denied"), status: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := WSEvents.WithLabelValues(tt.event, tt.status)
			before := testutil.ToFloat64(counter)

			RecordWSEvent(tt.event, tt.err)

			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("expected counter %v, got %v", before+1, got)
			}
		})
	}
}

func TestRecordQuizGraded(t *testing.T) {
	counter := QuizGradedTotal.WithLabelValues("lesson", "true")
	before := testutil.ToFloat64(counter)

	RecordQuizGraded("lesson", true)

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("expected counter %v, got %v", before+1, got)
	}
}

func TestSetRegistryStats(t *testing.T) {
	SetRegistryStats(4, 2)

	if got := testutil.ToFloat64(WSConnections); got != 4 {
		t.Errorf("expected 4 connections, got %v", got)
	}
	if got := testutil.ToFloat64(WSRooms); got != 2 {
		t.Errorf("expected 2 rooms, got %v", got)
	}
}

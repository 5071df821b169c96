package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "learning_ws_connections",
			Help: "Current number of authenticated websocket connections",
		},
	)

	WSRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "learning_ws_rooms",
			Help: "Current number of non-empty broadcast rooms",
		},
	)

	WSEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_ws_events_total",
			Help: "Inbound websocket events by name and outcome",
		},
		[]string{"event", "status"},
	)

	// Progression Metrics
	QuizGradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_quiz_graded_total",
			Help: "Graded quiz attempts by unit type and result",
		},
		[]string{"unit_type", "passed"},
	)

	UnitsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_units_completed_total",
			Help: "Units completed by students",
		},
		[]string{"unit_type"},
	)
)

// RecordWSEvent counts one handled inbound event
func RecordWSEvent(event string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	WSEvents.WithLabelValues(event, status).Inc()
}

func RecordQuizGraded(unitType string, passed bool) {
	QuizGradedTotal.WithLabelValues(unitType, strconv.FormatBool(passed)).Inc()
}

func RecordUnitCompleted(unitType string) {
	UnitsCompletedTotal.WithLabelValues(unitType).Inc()
}

// SetRegistryStats publishes the live connection and room counts
func SetRegistryStats(connections, rooms int) {
	WSConnections.Set(float64(connections))
	WSRooms.Set(float64(rooms))
}

// Handler serves the default registry for gin
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

package promote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
)

var runsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "factory",
		Subsystem: "promotion",
		Name:      "runs_total",
		Help:      "Terminal promotion runs by final state and reason.",
	},
	[]string{"final_state", "reason"},
)

func observeRun(out *promotion.Outcome) {
	runsTotal.WithLabelValues(string(out.FinalState), string(out.Reason)).Inc()
}

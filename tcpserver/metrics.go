package tcpserver

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the per-server connection counters. They are
// registered in the default metrics set and exposed by the metrics endpoint.
type serverMetrics struct {
	accepted *metrics.Counter
	rejected *metrics.Counter
	active   *metrics.Counter
}

func newServerMetrics(name string) *serverMetrics {
	return &serverMetrics{
		accepted: metrics.GetOrCreateCounter(fmt.Sprintf(`netlab_connections_accepted_total{server=%q}`, name)),
		rejected: metrics.GetOrCreateCounter(fmt.Sprintf(`netlab_connections_rejected_total{server=%q}`, name)),
		active:   metrics.GetOrCreateCounter(fmt.Sprintf(`netlab_connections_active{server=%q}`, name)),
	}
}

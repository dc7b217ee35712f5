package monitoring

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Order placement attempts by result",
		},
		[]string{"result"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"from", "to"},
	)

	inventoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_operations_total",
			Help: "Inventory ledger operations by result",
		},
		[]string{"result"},
	)

	ticketRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_pdf_render_seconds",
			Help:    "Duration of ticket PDF rendering",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

func ObserveOrderPlaced(result string) {
	ordersPlaced.WithLabelValues(result).Inc()
}

func ObserveTransition(from, to string) {
	orderTransitions.WithLabelValues(from, to).Inc()
}

func ObserveReservation(result string) {
	inventoryOperations.WithLabelValues(result).Inc()
}

func ObserveTicketRender(d time.Duration) {
	ticketRenderDuration.Observe(d.Seconds())
}

// StartMetricsServer exposes /metrics on its own port.
func StartMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}

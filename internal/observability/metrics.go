package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_reservations_total",
			Help: "Reservation attempts by result",
		},
		[]string{"result"},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_gateway_requests_total",
			Help: "Payment gateway calls by operation and result",
		},
		[]string{"op", "result"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "club_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "club_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_notifications_total",
			Help: "Notification sends by channel and result",
		},
		[]string{"channel", "result"},
	)

	ExpiredReservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "club_expired_reservations_total",
			Help: "Pending reservations released by the expiry sweep",
		},
	)
)

package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_relayed_total",
			Help: "Chat messages accepted for relay, by live delivery outcome.",
		},
		[]string{"delivered"},
	)

	unreadResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unread_resets_total",
			Help: "Read acknowledgements that cleared an unread counter.",
		},
	)
)

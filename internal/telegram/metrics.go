// Package telegram – Prometheus counters for bot traffic.
package telegram

import "github.com/prometheus/client_golang/prometheus"

var (
	// updatesSeen counts text messages the dispatch loop handled.
	updatesSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Total number of handled Telegram text messages.",
	})

	// deniedTotal counts messages rejected by the access gate.
	deniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_access_denied_total",
		Help: "Total number of messages denied for lack of valid access.",
	})

	// completionsTotal counts funnel completions by terminal outcome.
	completionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_funnel_completions_total",
		Help: "Total number of completed funnels by outcome.",
	}, []string{"outcome"}) // saved | duplicate
)

func init() {
	prometheus.MustRegister(updatesSeen, deniedTotal, completionsTotal)
}

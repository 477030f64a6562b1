package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settled payment confirmations by final state",
		},
		[]string{"state"},
	)
	SettlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "settlement_duration_seconds",
			Help: "Duration of one payment settlement end to end",
		},
	)
	InviteLinksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invite_links_total",
			Help: "Single-use invite link requests by result",
		},
		[]string{"result"},
	)
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound Telegram updates by kind",
		},
		[]string{"kind"},
	)
)

func Init() {
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(SettlementDuration)
	prometheus.MustRegister(InviteLinksTotal)
	prometheus.MustRegister(UpdatesTotal)

	prometheus.MustRegister(prometheus.NewGoCollector())
	prometheus.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

package round

import "github.com/prometheus/client_golang/prometheus"

var (
	guessesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_guesses_total",
			Help: "Submitted guesses by result",
		},
		[]string{"result"}, // accepted | rejected
	)
	roundsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_rounds_resolved_total",
			Help: "Rounds whose result write applied",
		},
		[]string{"result"}, // win | draw
	)
	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_votes_total",
			Help: "Play-again votes by outcome",
		},
		[]string{"result"}, // applied | rejected
	)
	resetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_resets_total",
			Help: "Reset handshake transitions",
		},
		[]string{"stage"}, // started | completed | failsafe
	)
	reconcileCorrections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duel_reconcile_corrections_total",
			Help: "Reconciliation reads that changed local state",
		},
	)
	storeWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duel_store_write_failures_total",
			Help: "Shared state writes that returned an error",
		},
		[]string{"op"},
	)
	liveCoordinators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duel_live_coordinators",
			Help: "Running round coordinators",
		},
	)
)

func init() {
	prometheus.MustRegister(guessesTotal)
	prometheus.MustRegister(roundsResolved)
	prometheus.MustRegister(votesTotal)
	prometheus.MustRegister(resetsTotal)
	prometheus.MustRegister(reconcileCorrections)
	prometheus.MustRegister(storeWriteFailures)
	prometheus.MustRegister(liveCoordinators)
}

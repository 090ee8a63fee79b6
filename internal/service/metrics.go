package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BattlesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battles_created_total",
			Help: "Battles created by the matchmaking queue",
		},
		[]string{"mode"},
	)
	BattlesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battles_finished_total",
			Help: "Battles reaching a terminal state",
		},
		[]string{"status"},
	)
	AnswersSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "battle_answers_submitted_total",
			Help: "Accepted (non-duplicate) answer submissions",
		},
	)
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchmaking_queue_depth",
			Help: "Waiting queue entries per mode",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(BattlesCreated)
	prometheus.MustRegister(BattlesFinished)
	prometheus.MustRegister(AnswersSubmitted)
	prometheus.MustRegister(QueueDepth)
}

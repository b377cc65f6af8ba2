// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kudosbot"

var (
	KudosGiven = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kudos_given_total",
		Help:      "Number of kudos transactions recorded",
	})
	KudosPointsGiven = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kudos_points_given_total",
		Help:      "Sum of kudos amounts given",
	})
	VotesCast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "goldstar_votes_total",
		Help:      "Number of Gold Star ballots cast",
	})
	PollsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "goldstar_polls_opened_total",
		Help:      "Number of Gold Star polls opened",
	})
	PollsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "goldstar_polls_closed_total",
		Help:      "Number of Gold Star polls closed",
	})
	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Slash commands handled, by command and outcome",
		},
		[]string{"command", "outcome"},
	)
)

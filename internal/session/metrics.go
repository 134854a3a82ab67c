package session

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    metricTurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "agent_turn_latency_ms",
        Help:    "Full turn processing latency, transcript in to response out",
        Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
    })

    metricClassifyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "agent_classify_latency_ms",
        Help:    "Intent classification call latency",
        Buckets: prometheus.ExponentialBuckets(25, 1.6, 10),
    })

    metricClassifyErrors = promauto.NewCounter(prometheus.CounterOpts{
        Name: "agent_classify_errors_total",
        Help: "Classifier calls that failed or timed out",
    })

    metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "agent_state_transitions_total",
        Help: "Booking machine state transitions",
    }, []string{"from", "to"})

    metricBargeIns = promauto.NewCounter(prometheus.CounterOpts{
        Name: "agent_barge_in_events_total",
        Help: "User speech detected while a response was playing",
    })

    metricEscalations = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "agent_escalations_total",
        Help: "Sessions escalated to a human callback, by reason",
    }, []string{"reason"})

    metricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "agent_session_outcomes_total",
        Help: "Finalized session outcomes",
    }, []string{"outcome"})

    metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
        Name: "agent_active_sessions",
        Help: "Sessions currently live",
    })
)

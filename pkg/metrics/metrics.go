package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internhub_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Registrations counts completed and staged registrations by mode (direct|otp) and result.
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internhub_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"mode", "result"},
	)

	// OTPVerifications counts OTP checks (verified|invalid|exhausted|missing).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internhub_otp_verifications_total",
			Help: "Total number of OTP verification attempts",
		},
		[]string{"result"},
	)

	// Applications counts apply attempts by result (created|duplicate).
	Applications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internhub_applications_total",
			Help: "Total number of internship applications",
		},
		[]string{"result"},
	)

	TestScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "internhub_test_score_percent",
			Help:    "Distribution of screening test scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"passed"},
	)

	ResumeUploads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "internhub_resume_uploads_total",
			Help: "Total number of stored resumes",
		},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "internhub_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "internhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pointsEarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_earned_total",
		Help: "Points awarded by the sale accrual coordinator.",
	})
	pointsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_redeemed_total",
		Help: "Points spent on reward redemptions.",
	})
	pointsReversedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_points_reversed_total",
		Help: "Points reversed or restored by refund processing.",
	})
	otpRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_otp_requested_total",
		Help: "OTP challenges issued.",
	})
	otpVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_otp_verified_total",
		Help: "OTP challenges verified successfully.",
	})
	otpLockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_otp_locked_total",
		Help: "OTP challenges locked after too many failed attempts.",
	})
)

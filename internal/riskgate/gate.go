// Package riskgate screens candidate tokens against an external risk score.
package riskgate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Default configuration values.
const (
	DefaultThreshold = 85
	DefaultTimeout   = 5 * time.Second
)

// ReasonScoreUnavailable is the rejection reason when the score
// collaborator fails or returns no score.
const ReasonScoreUnavailable = "score_unavailable"

// ScoreClient fetches a risk score in [0,100] for a mint. The boolean
// reports whether a score exists for the mint.
type ScoreClient interface {
	Score(ctx context.Context, mint string) (int, bool, error)
}

// Alerter sends a best-effort operator alert.
type Alerter interface {
	Notify(ctx context.Context, text string) error
}

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Admit  bool
	Score  *int   // present when the collaborator returned one
	Reason string // set on reject
}

// Gate admits candidates whose risk score meets the threshold.
//
// The gate fails closed: a collaborator failure, timeout, or missing
// score rejects the candidate, never admits it. Exactly one alert is
// emitted per rejected candidate; the gate performs a single
// collaborator call per evaluation, with no internal retries.
type Gate struct {
	client    ScoreClient
	alerter   Alerter
	threshold int
	timeout   time.Duration
	logger    *logrus.Logger
}

// Options contains configuration for creating a Gate.
type Options struct {
	Client    ScoreClient
	Alerter   Alerter
	Threshold int           // default DefaultThreshold
	Timeout   time.Duration // default DefaultTimeout
	Logger    *logrus.Logger
}

// New creates a new Gate.
func New(opts Options) *Gate {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Gate{
		client:    opts.Client,
		alerter:   opts.Alerter,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// Evaluate screens one mint. Reject decisions have already emitted
// their alert when Evaluate returns.
func (g *Gate) Evaluate(ctx context.Context, mint string) Decision {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	score, ok, err := g.client.Score(callCtx, mint)
	if err != nil || !ok {
		if err != nil {
			g.logger.WithFields(logrus.Fields{
				"mint":  mint,
				"error": err.Error(),
			}).Warn("risk score lookup failed, rejecting")
		}
		return g.reject(ctx, mint, nil, ReasonScoreUnavailable)
	}

	if score < g.threshold {
		return g.reject(ctx, mint, &score, fmt.Sprintf("score %d below threshold %d", score, g.threshold))
	}

	g.logger.WithFields(logrus.Fields{
		"mint":  mint,
		"score": score,
	}).Info("candidate admitted")
	return Decision{Admit: true, Score: &score}
}

// reject records the decision and emits exactly one alert.
func (g *Gate) reject(ctx context.Context, mint string, score *int, reason string) Decision {
	if g.alerter != nil {
		text := fmt.Sprintf("Rejected %s: %s", mint, reason)
		if score != nil {
			text = fmt.Sprintf("Warning! Contract %s has a low risk score: %d", mint, *score)
		}
		// Best effort; Notifier logs its own failures.
		_ = g.alerter.Notify(ctx, text)
	}
	return Decision{Admit: false, Score: score, Reason: reason}
}

package service

import (
	"context"
	"errors"
	"log/slog"

	nxotel "github.com/Strob0t/NexusPM/internal/adapter/otel"
	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/port/reasoner"
)

// Proposal sources recorded on a run.
const (
	SourceOracle    = "oracle"
	SourceHeuristic = "heuristic"
)

// FusionOutcome is the result of one fusion together with the path that
// produced it.
type FusionOutcome struct {
	Result fusion.Result
	Source string
	// Fallback is the oracle error that caused the heuristic to run.
	Fallback error
}

// FusionService runs the oracle and falls back to the heuristic matcher.
// The two paths never merge: one of them produces the whole result.
type FusionService struct {
	oracle  reasoner.Reasoner
	metrics *nxotel.Metrics
}

// NewFusionService creates a FusionService. A nil oracle always uses the
// heuristic.
func NewFusionService(oracle reasoner.Reasoner) *FusionService {
	return &FusionService{oracle: oracle}
}

// SetMetrics sets the optional metrics recorder.
func (s *FusionService) SetMetrics(m *nxotel.Metrics) {
	s.metrics = m
}

// Fuse produces proposals for in. Snapshots in the input are attached to
// update proposals whichever path ran.
func (s *FusionService) Fuse(ctx context.Context, in fusion.Input) FusionOutcome {
	out := s.reasonWithOracle(ctx, in)
	if out.Fallback != nil {
		slog.Warn("oracle failed, using heuristic matcher", "reason", fallbackReason(out.Fallback), "error", out.Fallback)
		if s.metrics != nil {
			s.metrics.OracleFallback(ctx, fallbackReason(out.Fallback))
		}
		out.Result = fusion.Heuristic(in)
		out.Source = SourceHeuristic
	}
	fusion.AttachSnapshots(out.Result.Proposals, in.Snapshots)
	if s.metrics != nil {
		s.metrics.ProposalsFrom(ctx, out.Source, len(out.Result.Proposals))
	}
	return out
}

func (s *FusionService) reasonWithOracle(ctx context.Context, in fusion.Input) FusionOutcome {
	if s.oracle == nil {
		return FusionOutcome{Fallback: reasoner.ErrUnavailable}
	}
	res, err := s.oracle.Reason(ctx, in)
	if err != nil {
		return FusionOutcome{Fallback: err}
	}
	if res == nil || len(res.Proposals) == 0 {
		return FusionOutcome{Fallback: reasoner.ErrEmpty}
	}
	return FusionOutcome{Result: *res, Source: SourceOracle}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, reasoner.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, reasoner.ErrMalformed):
		return "malformed"
	case errors.Is(err, reasoner.ErrEmpty):
		return "empty"
	default:
		return "error"
	}
}

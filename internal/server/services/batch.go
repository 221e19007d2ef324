package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// BatchOptions tune RunWeekly.
type BatchOptions struct {
	DryRun      bool
	OnlyEmail   string
	Limit       int
	Concurrency int
}

// BatchStatus is the outcome for one user.
type BatchStatus string

const (
	StatusSent   BatchStatus = "SENT"
	StatusDryRun BatchStatus = "DRY RUN"
	StatusSkip   BatchStatus = "SKIP"
	StatusFail   BatchStatus = "FAIL"
)

// BatchLine is the report entry for one user.
type BatchLine struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Status BatchStatus `json:"status"`
	Piece  string      `json:"piece,omitempty"`
	Owner  string      `json:"owner,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (l BatchLine) String() string {
	switch l.Status {
	case StatusSent:
		return fmt.Sprintf("[SENT] %s <- '%s'", l.Email, l.Piece)
	case StatusDryRun:
		return fmt.Sprintf("[DRY RUN] %s <- '%s' by %s", l.Email, l.Piece, l.Owner)
	case StatusSkip:
		return fmt.Sprintf("[SKIP] %s: no eligible art or paused", l.Email)
	default:
		return fmt.Sprintf("[FAIL] %s: %s", l.Email, l.Error)
	}
}

// BatchReport summarises a weekly run. Lines follow the user order.
type BatchReport struct {
	DryRun    bool        `json:"dry_run"`
	Processed int         `json:"processed"`
	Sent      int         `json:"sent"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Lines     []BatchLine `json:"lines"`

	errs error
}

// Err aggregates the per-user failures, or nil.
func (r *BatchReport) Err() error {
	return r.errs
}

// Summary is the one-line tally.
func (r *BatchReport) Summary() string {
	return fmt.Sprintf("Processed=%d  Sent=%d  Skipped=%d  Failed=%d", r.Processed, r.Sent, r.Skipped, r.Failed)
}

func (r *BatchReport) String() string {
	var sb strings.Builder
	for _, l := range r.Lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	sb.WriteString(r.Summary())
	return sb.String()
}

// RunWeekly shares one piece with every active user. Each user is handled in
// its own transaction; a failing user is reported and never stops the run.
// Only a failure to list the users is returned as an error.
func (s *DistributionService) RunWeekly(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	users, err := s.repomanager.Users(s.db).ListForWeekly(ctx, opts.OnlyEmail, opts.Limit)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{DryRun: opts.DryRun, Lines: make([]BatchLine, len(users))}
	var mu sync.Mutex

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range users {
		g.Go(func() error {
			line := BatchLine{UserID: u.ID, Email: u.Email}

			piece, err := s.ShareWeekly(gctx, u.ID, ShareOptions{DryRun: opts.DryRun})
			switch {
			case err != nil:
				line.Status = StatusFail
				line.Error = err.Error()
				s.logger.Error(gctx, "weekly share failed", "user_id", u.ID, "error", err)
			case piece == nil:
				line.Status = StatusSkip
			case opts.DryRun:
				line.Status = StatusDryRun
				line.Piece = piece.PieceName
				if owner, err := s.repomanager.Users(s.db).GetByID(gctx, piece.OwnerID); err == nil {
					line.Owner = owner.FullName()
				}
			default:
				line.Status = StatusSent
				line.Piece = piece.PieceName
			}

			mu.Lock()
			defer mu.Unlock()
			report.Lines[i] = line
			report.Processed++
			switch line.Status {
			case StatusFail:
				report.Failed++
				report.errs = multierr.Append(report.errs, fmt.Errorf("%s: %w", u.Email, err))
			case StatusSkip:
				report.Skipped++
			default:
				report.Sent++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info(ctx, "weekly run finished",
		"dry_run", opts.DryRun,
		"processed", report.Processed,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

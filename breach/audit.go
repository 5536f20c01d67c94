package breach

import (
	"context"
	"iter"
	"log/slog"

	"github.com/jmcleod/lockbox/failure"
)

// Entry is one stored credential to audit.
type Entry struct {
	ID       int64
	Site     string
	Username string
	Password string
}

// AuditResult pairs an entry's identity with its lookup outcome.
type AuditResult struct {
	ID       int64  `json:"id"`
	Site     string `json:"site"`
	Username string `json:"username"`
	Result
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Summary counts audit outcomes.
type Summary struct {
	Breached int `json:"breached"`
	Safe     int `json:"safe"`
	Unknown  int `json:"unknown"`
}

// Audit checks entries one at a time, in order, yielding each result as it
// completes. The sequence is lazy and may be ranged over again to rerun the
// audit. Cancelling ctx stops the audit before the next request; a request
// already in flight runs to completion (bounded by the client timeout) and
// its result is still yielded.
//
// If the spacing delay cannot be waited out before ctx's deadline, the
// remaining entries are yielded as Unknown with a failure.TransportFailure
// error instead of being dropped.
func (c *Client) Audit(ctx context.Context, entries []Entry) iter.Seq[AuditResult] {
	return func(yield func(AuditResult) bool) {
		var stopped error
		for i, e := range entries {
			if stopped == nil {
				if ctx.Err() != nil {
					slog.Debug("breach audit cancelled", slog.Int("checked", i), slog.Int("total", len(entries)))
					return
				}
				// Wait for our slot with the caller's context so cancellation
				// interrupts the spacing delay rather than the request.
				if err := c.limiter.Wait(ctx); err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Warn("breach audit cut short",
						slog.Int("checked", i),
						slog.Int("total", len(entries)),
						slog.Any("error", err),
					)
					stopped = failure.E(failure.TransportFailure, "waiting for rate limiter", err)
				}
			}

			var (
				res Result
				err error
			)
			if stopped != nil {
				res, err = Result{Status: Unknown}, stopped
			} else {
				res, err = c.check(context.WithoutCancel(ctx), e.Password)
			}

			out := AuditResult{
				ID:       e.ID,
				Site:     e.Site,
				Username: e.Username,
				Result:   res,
				Message:  res.Message(),
				Err:      err,
			}
			if !yield(out) {
				return
			}
		}
	}
}

// CheckMultiplePasswords runs Audit to completion and collects the results.
// If ctx is cancelled part-way it returns the results gathered so far along
// with ctx.Err().
func (c *Client) CheckMultiplePasswords(ctx context.Context, entries []Entry) ([]AuditResult, error) {
	results := make([]AuditResult, 0, len(entries))
	for r := range c.Audit(ctx, entries) {
		results = append(results, r)
	}
	return results, AuditIncomplete(ctx, len(results), len(entries))
}

// AuditIncomplete reports why an audit that yielded n of total results
// stopped, or nil if it finished.
func AuditIncomplete(ctx context.Context, n, total int) error {
	if n >= total {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return failure.E(failure.TransportFailure, "breach audit stopped early")
}

// Summarize tallies results by status.
func Summarize(results []AuditResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case Breached:
			s.Breached++
		case Safe:
			s.Safe++
		default:
			s.Unknown++
		}
	}
	return s
}

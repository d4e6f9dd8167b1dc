package session

import (
	"context"
	"fmt"

	"chainblock/internal/dispatch"
	"chainblock/pkg/decider"
	"chainblock/pkg/limiter"
	"chainblock/pkg/logger"
	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/scraper"
)

// processPage decides every new account of page and performs the resulting
// calls. Every dispatched call has completed when it returns.
func (s *Session) processPage(ctx context.Context, req request.Request, page scraper.Result, stopCh <-chan struct{}) error {
	executorID := req.Executor.User.ID
	perform := dispatch.ClientPerformer(req.Executor.Client)
	onResult := func(r dispatch.Result) { s.record(ctx, req, r) }

	lowRisk := dispatch.NewGroup(ctx, s.cfg.Concurrency, perform, onResult, s.log)
	defer lowRisk.Wait()

	s.countMissing(page.Missing)

	candidates := page.Users
	for _, id := range page.IDs {
		candidates = append(candidates, models.User{ID: id})
	}

	var batch []dispatch.Job
	// calls queued in batch that will count against the block limiter
	pending := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.flush(ctx, req, batch, perform, onResult, stopCh)
		batch, pending = nil, 0
	}

	for _, user := range candidates {
		if s.stopRequested() {
			s.release(batch)
			return nil
		}
		if user.ID == "" || user.ID == executorID || !s.claim(user.ID) {
			continue
		}

		if req.Purpose.Destructive() && s.cfg.Limiter != nil {
			st, err := s.cfg.Limiter.CheckPending(ctx, executorID, pending)
			if err != nil {
				s.release([]dispatch.Job{{UserID: user.ID}})
				flush()
				return fmt.Errorf("failed to check block limiter: %w", err)
			}
			if st == limiter.StatusDanger {
				s.release([]dispatch.Job{{UserID: user.ID}})
				flush()
				s.log.WarnWithFields("Block limit reached, stopping session", map[string]interface{}{
					"executor": executorID,
					"max":      s.cfg.Limiter.Max(),
				})
				s.Stop(ReasonBlockLimitationReached)
				return nil
			}
		}

		verb := decider.Decide(req, user, s.cfg.Now())
		if req.Purpose.Kind == request.Export {
			s.collect(user.ID)
			verb = request.Skip
		}

		switch {
		case !verb.Effectful():
			s.count(verb)
		case verb.Sensitive():
			batch = append(batch, dispatch.Job{UserID: user.ID, Verb: verb})
			if verb.CountsAgainstLimit() {
				pending++
			}
			if s.cfg.BatchSize > 0 && len(batch) >= s.cfg.BatchSize {
				flush()
			}
		default:
			lowRisk.Submit(dispatch.Job{UserID: user.ID, Verb: verb})
		}
	}

	flush()
	return nil
}

// flush performs a batch of rate-sensitive calls, waits for all of them and
// then sleeps for the configured inter-batch delay.
func (s *Session) flush(ctx context.Context, req request.Request, batch []dispatch.Job, perform dispatch.Performer, onResult func(dispatch.Result), stopCh <-chan struct{}) {
	dispatch.Batch(ctx, s.cfg.Concurrency, batch, perform, onResult, s.log)

	if delay := req.Options.DelayBetweenBatches; delay > 0 {
		wait(ctx, stopCh, delay)
	}
}

// record applies the outcome of one call
func (s *Session) record(ctx context.Context, req request.Request, r dispatch.Result) {
	if r.Err == nil && r.Job.Verb.CountsAgainstLimit() && s.cfg.Limiter != nil {
		if _, err := s.cfg.Limiter.Increment(ctx, req.Executor.User.ID, 1); err != nil {
			s.log.WithError(err).Warn("Failed to record action in block limiter")
		}
	}
	logger.LogMarkUser(s.id, r.Job.UserID, string(r.Job.Verb), r.Err)

	s.mutate(func() *Event {
		if r.Err != nil {
			s.progress.Failure++
		} else {
			s.progress.Success[r.Job.Verb]++
		}
		s.progress.recount()
		return &Event{
			Kind:   EventMarkUser,
			UserID: r.Job.UserID,
			Verb:   r.Job.Verb,
			Failed: r.Err != nil,
		}
	})
}

// claim adds id to the seen set. It returns false if id was already there.
func (s *Session) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[id] {
		s.repeats++
		s.updateTotalLocked()
		return false
	}
	s.seen[id] = true
	return true
}

// release forgets claimed accounts whose calls were never dispatched
func (s *Session) release(jobs []dispatch.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		delete(s.seen, j.UserID)
	}
}

func (s *Session) count(verb request.Verb) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if verb == request.AlreadyDone {
		s.progress.Already++
	} else {
		s.progress.Skipped++
	}
	s.progress.recount()
}

func (s *Session) countMissing(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if s.seen[id] {
			continue
		}
		s.seen[id] = true
		s.progress.Error++
	}
	s.progress.recount()
}

func (s *Session) collect(id string) {
	s.mu.Lock()
	s.exportIDs = append(s.exportIDs, id)
	s.mu.Unlock()
}

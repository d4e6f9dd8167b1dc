// Package dispatch runs effectful platform calls with bounded concurrency.
package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"chainblock/pkg/logger"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"

	"golang.org/x/sync/errgroup"
)

// Job is one effectful call against one account
type Job struct {
	UserID string
	Verb   request.Verb
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Performer executes a job
type Performer func(ctx context.Context, job Job) error

// Group runs jobs on at most limit goroutines. A failing job never cancels
// its siblings; every outcome is reported to onResult.
type Group struct {
	ctx      context.Context
	g        errgroup.Group
	perform  Performer
	onResult func(Result)
	pending  atomic.Int64
	logger   logger.Logger
}

// NewGroup creates a group. onResult is called from worker goroutines.
func NewGroup(ctx context.Context, limit int, perform Performer, onResult func(Result), log logger.Logger) *Group {
	if log == nil {
		log = logger.GetLogger()
	}
	g := &Group{ctx: ctx, perform: perform, onResult: onResult, logger: log}
	if limit > 0 {
		g.g.SetLimit(limit)
	}
	return g
}

// Submit schedules job, blocking while the group is at its limit
func (g *Group) Submit(job Job) {
	g.pending.Add(1)
	g.g.Go(func() error {
		defer g.pending.Add(-1)

		start := time.Now()
		err := g.perform(g.ctx, job)
		res := Result{Job: job, Err: err, Duration: time.Since(start)}

		if err != nil {
			g.logger.DebugWithFields("Call failed", map[string]interface{}{
				"user_id":  job.UserID,
				"verb":     string(job.Verb),
				"error":    err,
				"duration": res.Duration,
			})
		}
		if g.onResult != nil {
			g.onResult(res)
		}
		return nil
	})
}

// Wait blocks until every submitted job has reported
func (g *Group) Wait() {
	_ = g.g.Wait()
}

// Pending returns the number of submitted jobs that have not reported yet
func (g *Group) Pending() int {
	return int(g.pending.Load())
}

// Batch runs jobs and waits for all of them
func Batch(ctx context.Context, limit int, jobs []Job, perform Performer, onResult func(Result), log logger.Logger) {
	g := NewGroup(ctx, limit, perform, onResult, log)
	for _, job := range jobs {
		g.Submit(job)
	}
	g.Wait()
}

// ClientPerformer maps verbs to calls on client
func ClientPerformer(client twitter.Client) Performer {
	return func(ctx context.Context, job Job) error {
		switch job.Verb {
		case request.Block:
			return client.BlockUser(ctx, job.UserID)
		case request.UnBlock:
			return client.UnblockUser(ctx, job.UserID)
		case request.Mute:
			return client.MuteUser(ctx, job.UserID)
		case request.UnMute:
			return client.UnmuteUser(ctx, job.UserID)
		case request.UnFollow:
			return client.UnfollowUser(ctx, job.UserID)
		case request.BlockAndUnBlock:
			// removes the account from our followers without leaving a block
			if err := client.BlockUser(ctx, job.UserID); err != nil {
				return err
			}
			return client.UnblockUser(ctx, job.UserID)
		default:
			return fmt.Errorf("verb %s is not effectful", job.Verb)
		}
	}
}

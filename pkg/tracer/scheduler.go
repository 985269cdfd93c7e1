/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracer

import (
	"context"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler multiplexes many guest threads onto a bounded pool of
// goroutines, modeling spec.md §5's "many guest tasks multiplexed on a
// work-stealing executor": each guest thread's syscalls are strictly
// serialized (the tracer does not release the thread until its handler
// returns), while different guest threads run concurrently up to
// Concurrency. Grounded on pkg/supervisor.Supervisor's combination of
// golang.org/x/sync/errgroup and golang.org/x/sync/semaphore.
type Scheduler struct {
	sem *semaphore.Weighted
	grp *errgroup.Group
	ctx context.Context
}

// NewScheduler returns a Scheduler allowing up to concurrency guest
// threads to be dispatched at once. The returned context is
// cancelled as soon as any handler returns a fatal (tracer-visible)
// error, which aborts every other in-flight handler's next suspension
// point.
func NewScheduler(ctx context.Context, concurrency int64) *Scheduler {
	grp, gctx := errgroup.WithContext(ctx)
	return &Scheduler{
		sem: semaphore.NewWeighted(concurrency),
		grp: grp,
		ctx: gctx,
	}
}

// Dispatch runs handle for one guest thread (pkg/runner passes it that
// thread's whole trace loop, not a single syscall). It
// blocks until a concurrency slot is available, then runs handle on a
// new goroutine. handle must not retain ctx past its own return: per
// spec.md §5, cancellation of a guest thread releases everything
// (scratch memory included) by virtue of the guest's own stack being
// reclaimed, so Dispatch itself does no cleanup beyond releasing its
// semaphore slot.
func (s *Scheduler) Dispatch(handle func(ctx context.Context) error) error {
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		return errors.Wrap(err, "acquire scheduler slot")
	}
	s.grp.Go(func() error {
		defer s.sem.Release(1)
		if err := handle(s.ctx); err != nil {
			log.G(s.ctx).WithError(err).Warn("guest thread handler failed")
			return err
		}
		return nil
	})
	return nil
}

// Wait blocks until every dispatched handler has returned, and returns
// the first non-nil error any of them produced.
func (s *Scheduler) Wait() error {
	return s.grp.Wait()
}

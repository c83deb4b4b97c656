// Package queue implements the in-process job queue that schedules, executes,
// retries, and reclaims PR-analysis jobs.
package queue

import (
	"slices"
	"sync"
	"time"

	"github.com/sevigo/merge-warden/internal/core"
)

// Store is the mutex-guarded, memory-resident mapping from job id to job
// record. It is the only shared mutable state in the queue: every lifecycle
// mutation goes through one of its methods while holding the lock, and every
// read hands out deep copies.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*core.Job
	byKey map[core.JobKey][]string // job ids per dedup key, insertion order
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*core.Job),
		byKey: make(map[core.JobKey][]string),
	}
}

// Put inserts or overwrites a job by id. Deduplication is not enforced here;
// use GetOrPut for submissions.
func (s *Store) Put(job *core.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(job)
}

func (s *Store) insertLocked(job *core.Job) {
	if _, exists := s.jobs[job.ID]; !exists {
		key := job.Key()
		s.byKey[key] = append(s.byKey[key], job.ID)
	}
	s.jobs[job.ID] = job.Clone()
}

// GetOrPut atomically checks for an in-flight (pending or processing) job with
// the same dedup key and inserts the candidate only if none exists. It returns
// the authoritative job and whether the candidate was inserted.
func (s *Store) GetOrPut(job *core.Job) (*core.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byKey[job.Key()] {
		if existing, ok := s.jobs[id]; ok && !existing.Terminal() {
			return existing.Clone(), false
		}
	}

	s.insertLocked(job)
	return job.Clone(), true
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (*core.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update applies fn to the job under the store's lock and returns a copy of
// the mutated record. fn must not block.
func (s *Store) Update(id string, fn func(*core.Job)) (*core.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	fn(job)
	return job.Clone(), true
}

// ListByStatus returns copies of all jobs in the given state. Pending jobs are
// ordered oldest first so dispatch stays FIFO-fair; other states share the
// same ordering for predictability.
func (s *Store) ListByStatus(status core.JobStatus) []*core.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Job
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, job.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *core.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// ListByKey returns copies of every job recorded for the dedup key, newest
// first. Used for lookup and audit.
func (s *Store) ListByKey(key core.JobKey) []*core.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Job
	for _, id := range s.byKey[key] {
		if job, ok := s.jobs[id]; ok {
			out = append(out, job.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *core.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// ClaimPending atomically transitions up to limit eligible pending jobs
// (oldest first, honoring their not-before gate) into the processing state and
// returns their copies. Claiming under one lock acquisition ensures a job can
// never be handed to two executors.
func (s *Store) ClaimPending(now time.Time, limit int) []*core.Job {
	if limit <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*core.Job
	for _, job := range s.jobs {
		if job.Eligible(now) {
			eligible = append(eligible, job)
		}
	}
	slices.SortFunc(eligible, func(a, b *core.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]*core.Job, 0, len(eligible))
	for _, job := range eligible {
		started := now
		job.Status = core.JobStatusProcessing
		job.StartedAt = &started
		claimed = append(claimed, job.Clone())
	}
	return claimed
}

// ReapStale force-fails processing jobs whose executor has not settled within
// the deadline, so a hung analysis cannot pin a concurrency slot forever.
// Returns copies of the jobs it failed.
func (s *Store) ReapStale(now time.Time, deadline time.Duration) []*core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []*core.Job
	for _, job := range s.jobs {
		if job.Status != core.JobStatusProcessing || job.StartedAt == nil {
			continue
		}
		if now.Sub(*job.StartedAt) < deadline {
			continue
		}
		completed := now
		job.Status = core.JobStatusFailed
		job.CompletedAt = &completed
		job.Error = "job processing deadline exceeded"
		reaped = append(reaped, job.Clone())
	}
	return reaped
}

// RemoveTerminalBefore deletes completed and failed jobs whose completion time
// is older than the cutoff. Pending and processing jobs are never removed.
// Returns the number of jobs deleted.
func (s *Store) RemoveTerminalBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if !job.Terminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		s.removeLocked(id, job)
		removed++
	}
	return removed
}

// Remove deletes a job by id, regardless of state.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		s.removeLocked(id, job)
	}
}

func (s *Store) removeLocked(id string, job *core.Job) {
	delete(s.jobs, id)

	key := job.Key()
	ids := slices.DeleteFunc(s.byKey[key], func(existing string) bool {
		return existing == id
	})
	if len(ids) == 0 {
		delete(s.byKey, key)
	} else {
		s.byKey[key] = ids
	}
}

// Stats counts jobs per lifecycle state.
func (s *Store) Stats() core.QueueStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats core.QueueStats
	for _, job := range s.jobs {
		switch job.Status {
		case core.JobStatusPending:
			stats.Pending++
		case core.JobStatusProcessing:
			stats.Processing++
		case core.JobStatusCompleted:
			stats.Completed++
		case core.JobStatusFailed:
			stats.Failed++
		}
	}
	stats.Total = len(s.jobs)
	return stats
}

// Package encoderpool implements the Encoder Pool: a single-writer claim
// loop that pulls pending queue items and hands each to a freshly spawned
// Supervisor, bounded by a configurable concurrency limit.
package encoderpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

// idlePollInterval is how long the claim loop sleeps when either no slot
// is free or nothing is pending, per 4.H's "sleep 1s" pseudocode.
const idlePollInterval = time.Second

// Supervisor owns one queue item's encode from plan to finalise. The real
// implementation runs an external transcoder; Pool only needs to start it
// and be told when it's done so a slot frees up.
type Supervisor interface {
	// Run drives the item to completion (success or failure), updating its
	// own persisted state as it goes. It returns once the item reaches a
	// terminal state or ctx is cancelled.
	Run(ctx context.Context, item *models.QueueItem, profile *models.Profile)
}

// SupervisorFactory builds a Supervisor for one claimed item.
type SupervisorFactory func(item *models.QueueItem, profile *models.Profile) Supervisor

// Pool claims pending queue items and runs up to maxConcurrent Supervisors
// at once.
type Pool struct {
	queueRepo     repository.QueueItemRepository
	profileRepo   repository.ProfileRepository
	newSupervisor SupervisorFactory
	workerID      string
	maxConcurrent int
	logger        *slog.Logger

	mu      sync.Mutex
	active  int
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Pool. workerID identifies this pool instance to the claim
// repository (useful for multi-process deployments); maxConcurrent bounds
// simultaneous Supervisors.
func New(queueRepo repository.QueueItemRepository, profileRepo repository.ProfileRepository, newSupervisor SupervisorFactory, workerID string, maxConcurrent int, logger *slog.Logger) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{
		queueRepo:     queueRepo,
		profileRepo:   profileRepo,
		newSupervisor: newSupervisor,
		workerID:      workerID,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Running reports whether the pool's claim loop is active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches the claim loop. Calling Start on an already-running pool
// is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.claimLoop()

	p.logger.Info("encoder pool started", "max_concurrent", p.maxConcurrent)
	return nil
}

// Stop signals the claim loop to exit and waits for it. In-flight
// Supervisors are not forcibly killed — they observe ctx cancellation
// themselves and finish their own graceful stop path (4.G step 7).
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("encoder pool stopped")
}

func (p *Pool) claimLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		if p.activeCount() >= p.maxConcurrent {
			if !p.sleep(idlePollInterval) {
				return
			}
			continue
		}

		item, err := p.queueRepo.ClaimNextPending(p.ctx, p.workerID)
		if err != nil {
			p.logger.Error("claim failed", "error", err)
			if !p.sleep(idlePollInterval) {
				return
			}
			continue
		}
		if item == nil {
			if !p.sleep(idlePollInterval) {
				return
			}
			continue
		}

		profile, err := p.resolveProfile(item)
		if err != nil {
			p.logger.Error("resolving profile for claimed item failed", "item_id", item.ID, "error", err)
			item.MarkFailed(fmt.Sprintf("resolving profile: %v", err))
			if uerr := p.queueRepo.Update(p.ctx, item); uerr != nil {
				p.logger.Error("marking item failed after profile resolution error", "item_id", item.ID, "error", uerr)
			}
			continue
		}

		p.spawn(item, profile)
	}
}

func (p *Pool) resolveProfile(item *models.QueueItem) (*models.Profile, error) {
	if item.ProfileID == nil {
		return nil, fmt.Errorf("queue item %s has no profile", item.ID)
	}
	profile, err := p.profileRepo.GetByID(p.ctx, *item.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s not found", *item.ProfileID)
	}
	return profile, nil
}

func (p *Pool) spawn(item *models.QueueItem, profile *models.Profile) {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
		}()

		supervisor := p.newSupervisor(item, profile)
		p.logger.Info("supervisor claimed item", "item_id", item.ID, "path", item.FilePath)
		supervisor.Run(p.ctx, item, profile)
	}()
}

func (p *Pool) activeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// sleep waits for d or ctx cancellation, returning false if the pool was
// stopped while waiting.
func (p *Pool) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler runs jobs on cron specs. A job never overlaps itself: a tick
// that fires while the previous run is active is skipped.
type CronScheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	// triggered tracks runs started by Trigger, which cron does not wait for.
	triggered sync.WaitGroup
}

type entry struct {
	id      cron.EntryID
	spec    string
	run     func()
	running atomic.Bool
	skipped atomic.Int64
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	e := &entry{spec: spec}
	e.run = c.wrap(job, e)
	id, err := c.cron.AddFunc(spec, e.run)
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	e.id = id
	c.entries[name] = e
	logger.Info("job scheduled")
	return nil
}

// Start runs the scheduler until ctx is done or Stop is called. Jobs receive
// a context that is cancelled on Stop.
func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.cancel()
		c.ctx, c.cancel = context.WithCancel(ctx)
	}
	c.cron.Start()
}

// Trigger runs a scheduled job now in the background, subject to the same
// overlap rule as cron ticks.
func (c *CronScheduler) Trigger(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return fmt.Errorf("scheduler stopped")
	}
	e, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("job %s not scheduled", name)
	}
	c.triggered.Add(1)
	go func() {
		defer c.triggered.Done()
		e.run()
	}()
	return nil
}

// Stop cancels running jobs and waits for them to return, including runs
// started by Trigger.
func (c *CronScheduler) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cancel()
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.triggered.Wait()
}

func (c *CronScheduler) wrap(job Job, e *entry) func() {
	return func() {
		logger := logutil.GetLogger(c.ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", e.spec),
		)
		if !e.running.CompareAndSwap(false, true) {
			logger.Info("job skipped: still running", zap.Int64("skipped", e.skipped.Add(1)))
			return
		}
		defer e.running.Store(false)

		start := time.Now()
		logger.Info("job started")
		err := job.Run(c.ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}

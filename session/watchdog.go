package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ogabek/istudy-gate/authstate"
	"github.com/ogabek/istudy-gate/credstore"
)

// DefaultIdleTTL matches the absolute lifetime: a day without any operator
// activity also ends the session.
const DefaultIdleTTL = 24 * time.Hour

// DefaultCheckInterval is how often the absolute-lifetime check runs.
const DefaultCheckInterval = time.Minute

// Watchdog enforces session expiry through two independent mechanisms:
//
//   - an absolute-lifetime check on a fixed tick, comparing the persisted
//     login timestamp against the TTL;
//   - an inactivity timer that Touch resets on every authenticated request.
//
// Both resolve to the same idempotent Controller.Logout, so the timers may
// fire in any order or both.
type Watchdog struct {
	controller *Controller
	store      credstore.Store
	machine    *authstate.Machine
	logger     *slog.Logger

	ttl           time.Duration
	idleTTL       time.Duration
	checkInterval time.Duration
	now           func() time.Time

	activity chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WatchdogOption configures a Watchdog.
type WatchdogOption func(*Watchdog)

// WithIntervals overrides the expiry windows and tick interval.
func WithIntervals(ttl, idleTTL, checkInterval time.Duration) WatchdogOption {
	return func(w *Watchdog) {
		w.ttl = ttl
		w.idleTTL = idleTTL
		w.checkInterval = checkInterval
	}
}

// WithWatchdogClock overrides the time source.
func WithWatchdogClock(now func() time.Time) WatchdogOption {
	return func(w *Watchdog) { w.now = now }
}

// NewWatchdog creates a stopped watchdog; call Start to arm both timers.
func NewWatchdog(controller *Controller, store credstore.Store, machine *authstate.Machine, logger *slog.Logger, opts ...WatchdogOption) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watchdog{
		controller:    controller,
		store:         store,
		machine:       machine,
		logger:        logger,
		ttl:           DefaultTTL,
		idleTTL:       DefaultIdleTTL,
		checkInterval: DefaultCheckInterval,
		now:           time.Now,
		activity:      make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches both background checks.
func (w *Watchdog) Start() {
	w.wg.Add(2)
	go w.absoluteLoop()
	go w.idleLoop()
}

// Stop cancels both checks. Idempotent.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Touch records operator activity, pushing back the inactivity deadline.
// Never blocks.
func (w *Watchdog) Touch() {
	select {
	case w.activity <- struct{}{}:
	default:
	}
}

func (w *Watchdog) absoluteLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkAbsolute()
		}
	}
}

// checkAbsolute logs the session out once its age exceeds the TTL. Ticks
// after logout are no-ops: no token, nothing to do.
func (w *Watchdog) checkAbsolute() {
	if w.machine.Snapshot().Token == "" {
		return
	}
	stored, ok, err := w.store.Read()
	if err != nil || !ok || stored.LoginTimestamp == 0 {
		return
	}
	age := w.now().Sub(time.UnixMilli(stored.LoginTimestamp))
	if age > w.ttl {
		w.logger.Info("session past absolute lifetime, logging out",
			slog.Duration("age", age))
		w.controller.Logout(context.Background())
	}
}

func (w *Watchdog) idleLoop() {
	defer w.wg.Done()
	timer := time.NewTimer(w.idleTTL)
	defer timer.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.idleTTL)
		case <-timer.C:
			if w.machine.Snapshot().Token != "" {
				w.logger.Info("operator inactive past limit, logging out")
				w.controller.Logout(context.Background())
			}
			timer.Reset(w.idleTTL)
		}
	}
}

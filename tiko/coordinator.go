package tiko

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Update is delivered to subscribers after every cycle: the current
// snapshot plus the cycle's failure, if any. On failure the snapshot
// is the retained last-good one.
type Update struct {
	Snapshot Snapshot
	Err      error
}

// Coordinator schedules refresh cycles and owns the published
// snapshot. At most one cycle runs at a time; refresh requests
// arriving while one is in flight join its result. Command methods may
// run concurrently with a cycle, but the refresh they trigger obeys
// the same single-cycle rule.
type Coordinator struct {
	client   *Client
	interval time.Duration
	logger   *log.Logger

	refresh singleflight.Group

	mu       sync.RWMutex
	snapshot Snapshot
	lastErr  error
	subs     map[int]chan Update
	nextSub  int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator builds the client from cfg and wraps it in a
// coordinator. A nil logger falls back to the default logger.
func NewCoordinator(cfg Config, logger *log.Logger) (*Coordinator, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		client:   client,
		interval: cfg.PollInterval,
		logger:   logger,
		subs:     make(map[int]chan Update),
	}, nil
}

// Client returns the underlying resource client.
func (c *Coordinator) Client() *Client {
	return c.client
}

// Start runs the first refresh synchronously; a failure here is a
// setup failure and no polling begins. On success the polling loop
// runs until Stop.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.RequestRefresh(ctx); err != nil {
		return fmt.Errorf("first refresh: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
	return nil
}

// Stop cancels the polling loop, waits for it to exit, and closes all
// subscriber channels. Nothing is delivered afterwards.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.RequestRefresh(ctx); err != nil {
				c.logger.Printf("tiko: refresh failed: %v", err)
			}
		}
	}
}

// Snapshot returns the current snapshot. Cycles replace the value
// wholesale; the maps must not be mutated by callers.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LastError reports the most recent cycle failure, nil after a
// successful cycle.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Subscribe registers for updates delivered after each cycle. The
// channel holds the latest update only; a slow consumer sees the
// newest state, not the backlog. The returned cancel releases the
// subscription.
func (c *Coordinator) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Update, 1)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// RequestRefresh runs one refresh cycle, or joins one already in
// flight, and returns its result.
func (c *Coordinator) RequestRefresh(ctx context.Context) error {
	_, err, _ := c.refresh.Do("cycle", func() (any, error) {
		return nil, c.cycle(ctx)
	})
	return err
}

// SetTemperature sets a room's target temperature, then refreshes so
// subscribers observe the effect promptly. The command's own failure
// propagates to the caller; the follow-up refresh failure is absorbed
// into the coordinator's last-update signal.
func (c *Coordinator) SetTemperature(ctx context.Context, roomID string, celsius float64) error {
	if celsius < MinTemperature || celsius > MaxTemperature {
		return ValidationError{Msg: fmt.Sprintf("temperature %.1f out of range [%.1f, %.1f]", celsius, MinTemperature, MaxTemperature)}
	}
	if !onStep(celsius) {
		return ValidationError{Msg: fmt.Sprintf("temperature %.2f not a multiple of %.1f", celsius, TemperatureStep)}
	}
	if err := c.client.SetTemperature(ctx, roomID, celsius); err != nil {
		return err
	}
	if err := c.RequestRefresh(ctx); err != nil {
		c.logger.Printf("tiko: refresh after set temperature: %v", err)
	}
	return nil
}

// SetMode switches the property mode using the caller-facing
// vocabulary, then refreshes.
func (c *Coordinator) SetMode(ctx context.Context, mode ClimateMode) error {
	service, err := ServiceMode(mode)
	if err != nil {
		return err
	}
	if err := c.client.SetMode(ctx, service); err != nil {
		return err
	}
	if err := c.RequestRefresh(ctx); err != nil {
		c.logger.Printf("tiko: refresh after set mode: %v", err)
	}
	return nil
}

// onStep reports whether celsius lands on the thermostat's set-point
// grid. The tolerance absorbs float noise from UI arithmetic.
func onStep(celsius float64) bool {
	steps := celsius / TemperatureStep
	return math.Abs(steps-math.Round(steps)) < 1e-6
}

func (c *Coordinator) cycle(ctx context.Context) error {
	snapshot, err := c.fetchSnapshot(ctx)
	if err != nil {
		refreshFailureTotal.Inc()
		c.mu.Lock()
		c.lastErr = err
		retained := c.snapshot
		c.mu.Unlock()
		c.notify(Update{Snapshot: retained, Err: err})
		return err
	}

	refreshSuccessTotal.Inc()
	c.mu.Lock()
	c.snapshot = snapshot
	c.lastErr = nil
	c.mu.Unlock()
	c.notify(Update{Snapshot: snapshot})
	return nil
}

func (c *Coordinator) fetchSnapshot(ctx context.Context) (Snapshot, error) {
	if c.client.Session().State() != StateAuthenticated {
		if err := c.client.Authenticate(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("authenticate: %w", err)
		}
	}

	rooms, devices, err := c.fetchBoth(ctx)
	if err != nil {
		var authErr AuthenticationError
		if !errors.As(err, &authErr) || !authErr.TokenExpired {
			return Snapshot{}, err
		}

		// The service stopped honoring the token mid-session:
		// re-authenticate once and retry both fetches once.
		c.client.Session().Invalidate()
		if err := c.client.Authenticate(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("re-authenticate: %w", err)
		}
		rooms, devices, err = c.fetchBoth(ctx)
		if err != nil {
			return Snapshot{}, err
		}
	}

	snapshot := Snapshot{
		Rooms:     make(map[string]Room, len(rooms)),
		Devices:   make(map[string]Device, len(devices)),
		FetchedAt: time.Now(),
	}
	for _, room := range rooms {
		snapshot.Rooms[room.ID] = room
	}
	for _, device := range devices {
		snapshot.Devices[device.ID] = device
	}
	return snapshot, nil
}

// fetchBoth issues the two independent reads concurrently and waits
// for both.
func (c *Coordinator) fetchBoth(ctx context.Context) ([]Room, []Device, error) {
	var (
		rooms   []Room
		devices []Device
	)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		rooms, err = c.client.Rooms(ctx)
		return err
	})
	group.Go(func() error {
		var err error
		devices, err = c.client.Devices(ctx)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return rooms, devices, nil
}

func (c *Coordinator) notify(update Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- update:
		default:
			// Full buffer: drop the stale update, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

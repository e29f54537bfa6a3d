// Package filter drives the cascading state → district filter: it reacts to
// selection changes, issues the matching geodata fetches and publishes the
// resulting district list and active dataset.
//
// All state is owned by a single control goroutine (Run). Fetches run in their
// own goroutines and hand their results back to that loop, where the staleness
// rule is applied: per category, only the response to the most recently issued
// request is accepted.
package filter

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/paulmach/orb/geojson"

	"fraatlas/pkg/geodata"
	"fraatlas/pkg/logging"
	"fraatlas/pkg/selection"
	"fraatlas/pkg/tracker"
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("filter controller stopped")

// Source is the geodata service as seen by the controller.
type Source interface {
	FetchRootCollection(ctx context.Context) (*geojson.FeatureCollection, error)
	FetchChildCollection(ctx context.Context, parentKey string) (*geojson.FeatureCollection, error)
	FetchLeafDataset(ctx context.Context, leafKey string) (*geojson.FeatureCollection, error)
}

// Category groups fetches that supersede each other.
type Category string

const (
	CategoryRoot      Category = "root"
	CategoryDistricts Category = "districts"
	CategoryDataset   Category = "dataset"
)

// Snapshot is an immutable view of the session. Active is shared with other
// snapshots and must not be modified.
type Snapshot struct {
	Revision       uint64
	Selection      selection.Selection
	States         []string
	Districts      []string
	Active         *geojson.FeatureCollection
	ActiveRevision uint64 // bumped whenever Active is replaced
}

// CanSelectDistrict reports whether the district selector is enabled.
func (s Snapshot) CanSelectDistrict() bool {
	return s.Selection.State != ""
}

// Listener receives every published snapshot, in order, on the control goroutine.
type Listener func(Snapshot)

// Options configures a Controller.
type Options struct {
	Logger           *slog.Logger
	Tracker          *tracker.Tracker
	DemoAreaSentinel string
}

type resultKind int

const (
	kindRoot resultKind = iota
	kindDistrictList
	kindLeaf
	kindAggregate
)

type result struct {
	cat  Category
	seq  uint64
	kind resultKind
	key  string
	fc   *geojson.FeatureCollection
	err  error

	// dataset sequence at issue time; a root load only activates if no
	// dataset fetch was issued after it
	datasetSeq uint64
}

type command struct {
	fn   func()
	done chan struct{}
}

// Controller orchestrates fetches for the current selection.
type Controller struct {
	src      Source
	sel      *selection.SelectionState
	logger   *slog.Logger
	tracker  *tracker.Tracker
	sentinel string

	commands chan command
	results  chan result
	stopped  chan struct{}
	once     sync.Once

	// owned by the control goroutine
	ctx            context.Context
	seq            map[Category]uint64
	states         []string
	districts      []string
	active         *geojson.FeatureCollection
	activeRevision uint64
	revision       uint64

	mu        sync.RWMutex
	snap      Snapshot
	listeners []Listener
}

// New creates a controller. Call Run to start its control loop.
func New(src Source, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.New()
	}
	if opts.DemoAreaSentinel == "" {
		opts.DemoAreaSentinel = geodata.DemoAreaSentinel
	}

	c := &Controller{
		src:      src,
		sel:      selection.New(),
		logger:   opts.Logger.With("component", "filter"),
		tracker:  opts.Tracker,
		sentinel: opts.DemoAreaSentinel,
		commands: make(chan command),
		results:  make(chan result),
		stopped:  make(chan struct{}),
		seq:      make(map[Category]uint64),
	}
	c.sel.Subscribe(c.onSelectionChange)
	return c
}

// Subscribe registers a listener for published snapshots.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns the most recently published snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Run executes the control loop until ctx is done. Fetches are issued with
// contexts derived from ctx.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.once.Do(func() { close(c.stopped) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.commands:
			cmd.fn()
			close(cmd.done)
		case r := <-c.results:
			c.handleResult(r)
		}
	}
}

// LoadRoot fetches the root collection. It fills the available states and,
// unless a dataset has been requested since, activates the root collection.
func (c *Controller) LoadRoot(ctx context.Context) error {
	return c.do(ctx, func() {
		datasetSeq := c.seq[CategoryDataset]
		c.issue(CategoryRoot, kindRoot, "", datasetSeq, c.src.FetchRootCollection)
	})
}

// SelectState selects a state (clearing any district) and starts loading its districts.
func (c *Controller) SelectState(ctx context.Context, state string) error {
	return c.do(ctx, func() { c.sel.SetState(state) })
}

// SelectDistrict selects a district. It returns false without changing anything
// while no state is selected.
func (c *Controller) SelectDistrict(ctx context.Context, district string) (bool, error) {
	var accepted bool
	err := c.do(ctx, func() { accepted = c.sel.SetDistrict(district) })
	return accepted, err
}

// Clear resets the selection and the district list.
func (c *Controller) Clear(ctx context.Context) error {
	return c.do(ctx, func() { c.sel.Clear() })
}

// Apply activates the dataset for the current selection: the parcels of the
// selected district, or the districts of the selected state as an aggregate.
// With nothing selected it does nothing.
func (c *Controller) Apply(ctx context.Context) error {
	return c.do(ctx, func() {
		cur := c.sel.Current()
		switch cur.Level() {
		case selection.District:
			c.issue(CategoryDataset, kindLeaf, cur.District, 0, func(ctx context.Context) (*geojson.FeatureCollection, error) {
				return c.src.FetchLeafDataset(ctx, cur.District)
			})
		case selection.State:
			c.issue(CategoryDataset, kindAggregate, cur.State, 0, func(ctx context.Context) (*geojson.FeatureCollection, error) {
				return c.src.FetchChildCollection(ctx, cur.State)
			})
		default:
			logging.Trace(c.logger, "Apply ignored: nothing selected")
		}
	})
}

// do runs fn on the control goroutine and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case c.commands <- cmd:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-c.stopped:
		return ErrStopped
	}
}

// onSelectionChange runs on the control goroutine; selection is only mutated there.
func (c *Controller) onSelectionChange(ch selection.Change) {
	logging.Trace(c.logger, "Selection changed", "op", ch.Op, "state", ch.Cur.State, "district", ch.Cur.District)

	switch ch.Op {
	case selection.OpSetState, selection.OpClear:
		c.districts = nil
		if ch.Cur.State == "" {
			// a late list for the old state must not refill the selector
			c.seq[CategoryDistricts]++
		} else {
			state := ch.Cur.State
			c.issue(CategoryDistricts, kindDistrictList, state, 0, func(ctx context.Context) (*geojson.FeatureCollection, error) {
				return c.src.FetchChildCollection(ctx, state)
			})
		}
	}
	c.publish()
}

// issue tags a fetch with the next sequence number of its category and runs it
// in the background.
func (c *Controller) issue(cat Category, kind resultKind, key string, datasetSeq uint64, fetch func(context.Context) (*geojson.FeatureCollection, error)) {
	c.seq[cat]++
	seq := c.seq[cat]
	ctx := c.ctx

	c.logger.Debug("Fetch issued", "category", cat, "seq", seq, "key", key)

	go func() {
		fc, err := fetch(ctx)
		select {
		case c.results <- result{cat: cat, seq: seq, kind: kind, key: key, fc: fc, err: err, datasetSeq: datasetSeq}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) handleResult(r result) {
	if latest := c.seq[r.cat]; r.seq != latest {
		c.logger.Debug("Discarding stale response", "category", r.cat, "seq", r.seq, "latest", latest, "key", r.key)
		c.tracker.TrackStale(string(r.cat))
		return
	}

	if r.err != nil {
		// last good state stays in place
		c.logger.Warn("Fetch failed", "category", r.cat, "key", r.key, "error", r.err)
		return
	}

	switch r.kind {
	case kindRoot:
		c.states = geodata.Labels(r.fc, geodata.PropState)
		if c.seq[CategoryDataset] == r.datasetSeq {
			c.setActive(r.fc)
		}
		c.logger.Info("Root collection loaded", "states", len(c.states))

	case kindDistrictList:
		visible := geodata.Exclude(r.fc, geodata.PropDistrict, c.sentinel)
		c.districts = geodata.Labels(visible, geodata.PropDistrict)
		c.logger.Info("District list loaded", "state", r.key, "districts", len(c.districts))

	case kindAggregate:
		c.setActive(geodata.Exclude(r.fc, geodata.PropDistrict, c.sentinel))
		c.logger.Info("State aggregate activated", "state", r.key, "features", len(c.active.Features))

	case kindLeaf:
		if r.fc == nil {
			c.logger.Info("No parcel dataset for district", "district", r.key)
			c.setActive(geojson.NewFeatureCollection())
		} else {
			c.setActive(r.fc)
			c.logger.Info("Parcel dataset activated", "district", r.key, "features", len(r.fc.Features))
		}
	}
	c.publish()
}

func (c *Controller) setActive(fc *geojson.FeatureCollection) {
	c.active = fc
	c.activeRevision++
}

// publish stores a new snapshot and hands it to every listener.
func (c *Controller) publish() {
	c.revision++
	snap := Snapshot{
		Revision:       c.revision,
		Selection:      c.sel.Current(),
		States:         slices.Clone(c.states),
		Districts:      slices.Clone(c.districts),
		Active:         c.active,
		ActiveRevision: c.activeRevision,
	}

	c.mu.Lock()
	c.snap = snap
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Package harness drives a plugin through a full lifecycle without a host engine: it feeds
// prepared records into named inputs, captures what the plugin writes to its output anchors,
// and records every message the plugin sends.
package harness

import (
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"
	"golang.org/x/sync/errgroup"

	"github.com/hyp3rd/hyperstream"
	"github.com/hyp3rd/hyperstream/pkg/engine"
	"github.com/hyp3rd/hyperstream/pkg/record"
	"github.com/hyp3rd/hyperstream/pkg/sink"
	"github.com/hyp3rd/hyperstream/pkg/stream"
)

var (
	// ErrInputRefused is returned when the plugin refuses an input connection.
	ErrInputRefused = ewrap.New("input connection refused")
	// ErrRecordRefused is returned when an input connection refuses a prepared record.
	ErrRecordRefused = ewrap.New("record refused")
	// ErrAlreadyRun is returned when SimulateLifecycle is called twice.
	ErrAlreadyRun = ewrap.New("lifecycle already simulated")
)

type input struct {
	name    string
	layout  record.Layout
	records [][]byte
}

// Runner hosts one plugin context backed by an engine.Recorder.
type Runner struct {
	pc       *stream.PluginContext
	recorder *engine.Recorder

	mu       sync.Mutex
	inputs   []input
	captures map[string]*sink.Collector
	errs     []error
	ran      bool
}

// New creates the plugin context for toolID. The recorder is installed as the engine; opts may
// set anything else, including another logger or configuration.
func New(ctx context.Context, toolID int, plugin hyperstream.Plugin, opts ...stream.Option) (*Runner, error) {
	recorder := engine.NewRecorder()

	pc, err := stream.New(ctx, toolID, plugin, append([]stream.Option{stream.WithEngine(recorder)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &Runner{
		pc:       pc,
		recorder: recorder,
		captures: make(map[string]*sink.Collector),
	}, nil
}

// Context returns the plugin context under test.
func (r *Runner) Context() *stream.PluginContext { return r.pc }

// Recorder returns the engine that captured the plugin's messages.
func (r *Runner) Recorder() *engine.Recorder { return r.recorder }

// ConnectInput queues an input connection on the named anchor that will push records, in
// order, once the lifecycle is simulated.
func (r *Runner) ConnectInput(name string, layout record.Layout, records [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inputs = append(r.inputs, input{name: name, layout: layout, records: records})
}

// CaptureOutgoingAnchor attaches a collector to the named output anchor. Calling it twice for
// the same anchor returns the same collector.
func (r *Runner) CaptureOutgoingAnchor(name string) *sink.Collector {
	r.mu.Lock()
	defer r.mu.Unlock()

	if collector, ok := r.captures[name]; ok {
		return collector
	}

	collector := sink.NewCollector(name)
	r.captures[name] = collector

	err := r.pc.AddOutgoingConnection(name, collector)
	if err != nil {
		r.errs = append(r.errs, err)
	}

	return collector
}

// SimulateLifecycle registers every queued input, pushes their records concurrently, closes
// them, and waits for the completion cascade. A plugin without inputs is completed through
// PushAllRecords.
func (r *Runner) SimulateLifecycle(ctx context.Context) error {
	r.mu.Lock()

	if r.ran {
		r.mu.Unlock()

		return ErrAlreadyRun
	}

	r.ran = true
	inputs := r.inputs
	errs := r.errs
	r.mu.Unlock()

	if len(errs) > 0 {
		return ewrap.Wrap(errs[0], "capturing outgoing anchor")
	}

	if len(inputs) == 0 {
		r.pc.PushAllRecords(-1)

		return r.finish(ctx)
	}

	conns := make([]hyperstream.IncomingConnection, 0, len(inputs))

	for _, in := range inputs {
		conn, err := r.pc.AddIncomingConnection(in.name)
		if err != nil {
			return ewrap.Wrap(err, "connecting input").WithMetadata("anchor", in.name)
		}

		conns = append(conns, conn)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for i, in := range inputs {
		conn := conns[i]

		group.Go(func() error {
			defer conn.Close()

			return push(groupCtx, conn, in)
		})
	}

	err := group.Wait()
	if err != nil {
		r.pc.Close(true)

		return err
	}

	return r.finish(ctx)
}

func (r *Runner) finish(ctx context.Context) error {
	select {
	case <-r.pc.Done():
	case <-ctx.Done():
		r.pc.Close(true)

		return ewrap.Wrap(ctx.Err(), "waiting for completion")
	}

	r.pc.Close(false)

	return nil
}

func push(ctx context.Context, conn hyperstream.IncomingConnection, in input) error {
	if !conn.Init(in.layout.String()) {
		return ewrap.Wrap(ErrInputRefused, "initializing input").WithMetadata("anchor", in.name)
	}

	for i, rec := range in.records {
		if ctx.Err() != nil {
			return ewrap.Wrap(ctx.Err(), "pushing records").WithMetadata("anchor", in.name)
		}

		if !conn.PushRecord(rec) {
			return ewrap.Wrap(ErrRecordRefused, "pushing records").
				WithMetadata("anchor", in.name).
				WithMetadata("index", i)
		}
	}

	conn.UpdateProgress(1)

	return nil
}

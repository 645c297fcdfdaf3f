package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"go.uber.org/atomic"
)

// killGrace is how long Shutdown waits for the subprocess to exit after "quit" before it is
// killed outright.
const killGrace = 2 * time.Second

// Option configures a Driver at construction.
type Option func(*options)

type options struct {
	variant VariantDetector
	policy  OptionPolicy
	version build.Version
}

// WithVariantDetector overrides the default VerboseMoveStats-based VariantDetector.
func WithVariantDetector(v VariantDetector) Option {
	return func(o *options) { o.variant = v }
}

// WithOptionPolicy overrides the default OptionPolicy.
func WithOptionPolicy(p OptionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithVersion attaches a build identity, reported in AckEngineStart logging and available to
// hosts via Version.
func WithVersion(v build.Version) Option {
	return func(o *options) { o.version = v }
}

// Driver is a single-threaded cooperative state machine mediating between a Hub and a UCI
// engine subprocess. All DriverState is mutated exclusively on a single event-loop goroutine;
// every exported method submits a closure through an unbuffered action channel and, where a
// result is needed, blocks on a one-shot response channel -- mirroring the comm.cmdc/comm.errc
// request/response shape and the single uci.Driver.process select loop this package grew out
// of. There is deliberately no sync.Mutex in this package.
type Driver struct {
	iox.AsyncCloser

	hub     Hub
	cfg     Config
	version build.Version
	variant VariantDetector
	policy  OptionPolicy

	classifier InboundClassifier
	reg        *optionRegistry
	sm         *SearchStateMachine

	transport *Transport

	actions  chan func()
	launched atomic.Bool // CAS-guarded: Launch may only be called once
	closed   atomic.Bool // CAS-guarded: Shutdown may only run once

	receivedUCIOk   bool
	receivedReadyOk bool
	quitRequested   bool
	variantLeelaish bool
	warnedSendFail  bool
	lastSend        time.Time
}

// NewDriver constructs a Driver bound to hub and starts its event-loop goroutine immediately.
// The Driver accepts SetOption/PressButton calls before Launch -- SetOption still records and
// acks its value to the hub, and nothing is written since no subprocess has been spawned yet.
func NewDriver(ctx context.Context, hub Hub, cfg Config, opts ...Option) *Driver {
	opt := options{
		variant: NewVariantDetector(),
		policy:  DefaultOptionPolicy(),
	}
	for _, fn := range opts {
		fn(&opt)
	}

	d := &Driver{
		AsyncCloser: iox.NewAsyncCloser(),
		hub:         hub,
		cfg:         cfg,
		version:     opt.version,
		variant:     opt.variant,
		policy:      opt.policy,
		reg:         newOptionRegistry(),
		actions:     make(chan func()),
	}
	d.sm = newSearchStateMachine(cfg, hub, d.reg, d.send)

	go d.run(ctx)
	return d
}

// Launch spawns the executable at path with args. It is an error to call Launch more than once
// on a given Driver.
func (d *Driver) Launch(ctx context.Context, path string, args ...string) error {
	if !d.launched.CAS(false, true) {
		return ErrAlreadyLaunched
	}

	t, err := Launch(ctx, path, args...)
	if err != nil {
		d.hub.AlertSpawnFailure(err)
		return fmt.Errorf("launch %v: %w", path, err)
	}

	d.do(func() {
		d.transport = t
		d.reg.reset()

		for _, name := range WellKnownOptionNames {
			d.hub.AckSetOption(strings.ToLower(name), "")
		}
		d.hub.AckEngineStart(path)
		logw.Infof(ctx, "driver: launched %v (version %v)", path, d.version)

		_ = d.send("uci", false)
		_ = d.send("isready", false)
	})
	return nil
}

// run is the single event-loop goroutine. It owns every write to DriverState. lines is
// recomputed each iteration from d.transport, which starts nil and is set exactly once by
// Launch -- reading it here is safe without synchronization because only this goroutine ever
// reads DriverState, and d.transport is itself only ever written via d.do.
func (d *Driver) run(ctx context.Context) {
	defer d.Close()

	wctx, cancel := contextx.WithQuitCancel(ctx, d.Closed())
	defer cancel()

	for {
		var lines <-chan Line
		if d.transport != nil {
			lines = d.transport.Lines()
		}

		select {
		case fn, ok := <-d.actions:
			if !ok {
				return
			}
			fn()

		case line, ok := <-lines:
			if !ok {
				logw.Infof(ctx, "driver: engine stream closed")
				d.transport = nil
				continue
			}
			d.dispatch(wctx, line)

		case <-d.Closed():
			return
		}
	}
}

// do submits fn to the event loop and blocks until it has run. It is the building block for
// every exported Driver method that must read or write DriverState.
func (d *Driver) do(fn func()) {
	done := make(chan struct{})
	select {
	case d.actions <- func() { fn(); close(done) }:
		<-done
	case <-d.Closed():
	}
}

func (d *Driver) dispatch(ctx context.Context, line Line) {
	if d.quitRequested {
		return
	}

	if line.Stream == Stderr {
		d.hub.ReceiveError(safeString(line.Text))
		return
	}

	switch d.classifier.Classify(line.Text) {
	case KindBestMove:
		forward, node := d.sm.HandleBestMove(ctx, line.Text)
		if forward {
			d.hub.ReceiveBestMove(line.Text, node)
		}

	case KindInfo:
		d.variantLeelaish = d.variantLeelaish || d.variant.Observe(line.Text)
		if reason := d.sm.filterInfo(d.variantLeelaish); reason != "" {
			logw.Debugf(ctx, "driver: dropping info line (%v): %v", reason, line.Text)
			return
		}
		if d.cfg.LogInfoLines {
			logw.Debugf(ctx, "driver: info: %v", line.Text)
		}
		d.hub.ReceiveInfo(d, d.sm.Running(), line.Text)

	case KindOption:
		if strings.Contains(strings.ToLower(line.Text), "uci_chess960") {
			_ = d.send("setoption name UCI_Chess960 value true", true)
		}
		d.hub.ReceiveMisc(line.Text)

	case KindUCIOk:
		d.receivedUCIOk = true
		d.hub.ReceiveMisc(line.Text)

	case KindReadyOk:
		d.receivedReadyOk = true
		d.hub.ReceiveMisc(line.Text)

	default:
		d.hub.ReceiveMisc(line.Text)
	}
}

// send writes a single outbound line, queuing setoption lines instead when a search is running
// and the caller hasn't forced it. It is only ever called on the event-loop goroutine, either
// directly from run/dispatch or via SearchStateMachine's send callback.
func (d *Driver) send(line string, force bool) error {
	line = strings.TrimRight(line, " \t\r\n")

	if strings.HasPrefix(line, "setoption") {
		if d.sm.Running() != nil && !force {
			d.reg.queue(line)
			return nil
		}
		if name, value, ok := parseSetOption(line); ok {
			d.reg.record(d.hub, name, value)
		}
	}

	if d.transport == nil {
		return nil
	}

	if err := d.transport.Send(line); err != nil {
		logw.Errorf(context.Background(), "driver: write failed: %v", err)
		if !d.lastSend.IsZero() && !d.warnedSendFail {
			d.hub.AlertSendFailure(err)
			d.warnedSendFail = true
		}
		return err
	}
	d.lastSend = time.Now()
	return nil
}

// parseSetOption extracts name and value from a "setoption name <N> value <V>" line. ok is
// false unless a non-empty name is followed by the value marker.
func parseSetOption(line string) (name, value string, ok bool) {
	fields := strings.Fields(line)
	var nameParts, valueParts []string
	mode := ""
	sawValue := false
	for _, f := range fields[1:] {
		lf := strings.ToLower(f)
		switch lf {
		case "name":
			mode = "name"
			continue
		case "value":
			if mode == "name" {
				sawValue = true
			}
			mode = "value"
			continue
		}
		switch mode {
		case "name":
			nameParts = append(nameParts, f)
		case "value":
			valueParts = append(valueParts, f)
		}
	}
	if len(nameParts) == 0 || !sawValue {
		return "", "", false
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " "), true
}

// SetSearchDesired requests that node be searched, or halts any active search if node is nil.
// It is a no-op until both uciok and readyok have been observed.
func (d *Driver) SetSearchDesired(ctx context.Context, node GameNode, limit lang.Optional[int], searchmoves []string) {
	d.do(func() {
		if !d.receivedUCIOk || !d.receivedReadyOk {
			logw.Debugf(ctx, "driver: SetSearchDesired before handshake, ignoring")
			return
		}
		params := NewSearchParams(node, limit, searchmoves)
		if err := d.sm.SetSearchDesired(ctx, params); err != nil {
			logw.Errorf(ctx, "driver: SetSearchDesired: %v", err)
		}
	})
}

// SetOption sends "setoption name <name> value <value>", or queues it if a search is running.
func (d *Driver) SetOption(ctx context.Context, name, value string) {
	d.do(func() {
		line := fmt.Sprintf("setoption name %v value %v", name, value)
		if err := d.send(line, false); err != nil {
			logw.Errorf(ctx, "driver: SetOption %v: %v", name, err)
		}
	})
}

// PressButton sends a parameterless "setoption name <name>", used for button-style engine
// actions.
func (d *Driver) PressButton(ctx context.Context, name string) {
	d.do(func() {
		line := fmt.Sprintf("setoption name %v", name)
		if err := d.send(line, false); err != nil {
			logw.Errorf(ctx, "driver: PressButton %v: %v", name, err)
		}
	})
}

// MaybeSetOption applies the Driver's OptionPolicy before sending. If the option is suppressed
// for the currently detected variant, the previously recorded value is re-acked to the hub (so
// its UI snaps back) and a human-readable reason is returned; otherwise the option is sent and
// ok is true.
func (d *Driver) MaybeSetOption(ctx context.Context, name, value string) (reason string, ok bool) {
	result := make(chan struct {
		reason string
		ok     bool
	}, 1)
	d.do(func() {
		key := strings.ToLower(name)
		if pred, found := d.policy[key]; found {
			if suppressed, why := pred(d.variantLeelaish); suppressed {
				d.hub.AckSetOption(key, d.reg.value(key))
				result <- struct {
					reason string
					ok     bool
				}{why, false}
				return
			}
		}
		line := fmt.Sprintf("setoption name %v value %v", name, value)
		if err := d.send(line, false); err != nil {
			logw.Errorf(ctx, "driver: MaybeSetOption %v: %v", name, err)
		}
		result <- struct {
			reason string
			ok     bool
		}{"", true}
	})
	select {
	case r := <-result:
		return r.reason, r.ok
	default:
		// The Driver has shut down and the closure never ran.
		return "", false
	}
}

// SendUCINewGame sends "ucinewgame", once both handshakes have been observed. The caller is
// responsible for halting any active search first.
func (d *Driver) SendUCINewGame(ctx context.Context) {
	d.do(func() {
		if !d.receivedUCIOk || !d.receivedReadyOk {
			logw.Debugf(ctx, "driver: SendUCINewGame before handshake, ignoring")
			return
		}
		if err := d.send("ucinewgame", false); err != nil {
			logw.Errorf(ctx, "driver: SendUCINewGame: %v", err)
		}
	})
}

// ForgetCurrentCycle instructs the Driver to drop info lines from the in-flight search cycle
// without halting the search.
func (d *Driver) ForgetCurrentCycle() {
	d.do(func() { d.sm.ForgetCurrentCycle() })
}

// UnresolvedStopTime reports when an outstanding stop (awaiting its bestmove) was sent, if any.
func (d *Driver) UnresolvedStopTime() (t time.Time, ok bool) {
	d.do(func() { t, ok = d.sm.UnresolvedStopTime() })
	return t, ok
}

// Cycle returns the current search-cycle counter.
func (d *Driver) Cycle() uint64 {
	var n uint64
	d.do(func() { n = d.sm.Cycle() })
	return n
}

// Version returns the build identity the Driver was constructed with.
func (d *Driver) Version() build.Version {
	return d.version
}

// Shutdown requests "quit", then kills the subprocess if it has not exited within the grace
// period. A Driver instance is single-use: Shutdown closes the internal AsyncCloser, and
// subsequent calls (to Shutdown or any other method) are no-ops.
func (d *Driver) Shutdown(ctx context.Context) {
	if !d.closed.CAS(false, true) {
		return
	}

	var t *Transport
	d.do(func() {
		d.quitRequested = true
		if err := d.send("quit", true); err != nil {
			logw.Warningf(ctx, "driver: quit write failed: %v", err)
		}
		t = d.transport
	})

	if t != nil {
		if err := t.AwaitExit(killGrace); err != nil {
			logw.Warningf(ctx, "driver: subprocess exit: %v", err)
		}
	}

	d.Close()
}

package driver

import "strings"

// Hub is the set of callbacks the driver invokes on its host application. The hub owns the
// Driver; the driver never calls back into the hub except through this interface.
type Hub interface {
	// ReceiveBestMove is called exactly once per completed search that was still desired when
	// its bestmove arrived. node is the node that was searched.
	ReceiveBestMove(line string, node GameNode)
	// ReceiveInfo is called for every info line that survives the driver's drop filter.
	ReceiveInfo(d *Driver, node GameNode, line string)
	// ReceiveError is called for every stderr line, after safe-string filtering.
	ReceiveError(line string)
	// ReceiveMisc is called for every stdout line not otherwise classified (including uciok
	// and readyok, after the driver updates its own handshake flags).
	ReceiveMisc(line string)

	// AckEngineStart is called once, right after the subprocess is spawned.
	AckEngineStart(path string)
	// AckSetOption is called whenever a sent option is recorded or re-asserted. name is
	// lowercase; value is "" if no value has yet been sent for that key.
	AckSetOption(name, value string)
	// AlertSpawnFailure is called once per Driver if the subprocess fails to launch.
	AlertSpawnFailure(err error)
	// AlertSendFailure is called once, on the first write failure that follows at least one
	// successful send.
	AlertSendFailure(err error)
}

// CycleSink receives the driver's search-cycle counters once per go. The driver invokes the
// setter; the hub's info handler owns the storage (e.g. as an atomic.Uint64 pair), since it
// may be read from a goroutine other than the driver's event loop.
type CycleSink interface {
	Cycle(n uint64)
	Subcycle(n uint64)
}

// VariantDetector observes inbound lines and reports whether the engine has revealed itself
// to be a "leelaish" (neural-network, VerboseMoveStats) engine rather than a classical
// alpha-beta one. It is a one-shot capability: once it reports true, callers must keep
// treating the engine as leelaish for the lifetime of the driver.
type VariantDetector interface {
	// Observe inspects an info line and returns true iff the line (or any prior line) marks
	// the engine as leelaish.
	Observe(line string) bool
}

// verboseMoveStatsDetector is the default VariantDetector: it looks for the VerboseMoveStats
// token that leelaish engines emit on their info lines, and never resets once set.
type verboseMoveStatsDetector struct {
	leelaish bool
}

// NewVariantDetector returns the default VariantDetector, which looks for the VerboseMoveStats
// marker that leelaish engines emit on their info lines.
func NewVariantDetector() VariantDetector {
	return &verboseMoveStatsDetector{}
}

func (d *verboseMoveStatsDetector) Observe(line string) bool {
	if !d.leelaish && strings.Contains(line, "VerboseMoveStats") {
		d.leelaish = true
	}
	return d.leelaish
}

// Config holds the dynamic configuration the driver reads. The host owns the config store;
// the driver only reads it.
type Config struct {
	// LogPositions enables position-level debug logging.
	LogPositions bool
	// LogInfoLines enables per-info-line debug logging.
	LogInfoLines bool
	// UseMovetime selects "go movetime <n>" instead of "go nodes <n>" for a positive limit.
	UseMovetime bool
	// SearchmovesButtons allows searchmoves restriction to be appended to "go".
	SearchmovesButtons bool
}

// WellKnownOptionNames are acked to the hub right after engine launch, so the host's option
// menu check-marks reset to their default (unsent) state for a freshly spawned engine.
var WellKnownOptionNames = []string{
	"Hash",
	"Threads",
	"MultiPV",
	"Ponder",
	"UCI_Chess960",
	"UCI_AnalyseMode",
	"UCI_ShowWDL",
	"Contempt",
	"WeightsFile",
	"SyzygyPath",
}

// OptionPolicy suppresses engine options that don't exist for the currently detected variant.
// A name absent from the policy is always allowed. Keys are lowercase option names.
type OptionPolicy map[string]func(leelaish bool) (suppressed bool, reason string)

// DefaultOptionPolicy is seeded with the option families that diverge between classical
// alpha-beta engines and leelaish neural-network ones.
func DefaultOptionPolicy() OptionPolicy {
	return OptionPolicy{
		"uci_showwdl": func(leelaish bool) (bool, string) {
			if !leelaish {
				return true, "UCI_ShowWDL is only supported by leelaish engines"
			}
			return false, ""
		},
		"contempt": func(leelaish bool) (bool, string) {
			if leelaish {
				return true, "Contempt is not supported by leelaish engines"
			}
			return false, ""
		},
	}
}

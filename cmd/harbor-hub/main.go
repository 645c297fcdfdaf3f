// harbor-hub is a minimal interactive host for the driver package: it launches a UCI engine
// subprocess, logs every callback the driver makes, and issues one analysis search against the
// standard starting position so the wiring can be exercised end to end without a full chess
// model.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/herohde/harbor/pkg/driver"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

var (
	enginePath = flag.String("engine", "", "Path to a UCI engine executable")
	movetime   = flag.Int("movetime", 2000, "Milliseconds to analyze the starting position for")
)

var version = build.NewVersion(0, 1, 0)

func main() {
	flag.Parse()
	ctx := context.Background()

	if *enginePath == "" {
		flag.Usage()
		logw.Exitf(ctx, "harbor-hub: -engine is required")
	}

	h := &consoleHub{out: bufio.NewWriter(os.Stdout)}
	cfg := driver.Config{
		LogPositions: true,
		LogInfoLines: true,
		UseMovetime:  true,
	}

	d := driver.NewDriver(ctx, h, cfg, driver.WithVersion(version))
	if err := d.Launch(ctx, *enginePath); err != nil {
		logw.Exitf(ctx, "harbor-hub: launch failed: %v", err)
	}

	root := &startpos{}
	// SetSearchDesired is a no-op until the engine has answered uci and isready, so retry until
	// the search has actually started.
	deadline := time.Now().Add(5 * time.Second)
	for d.Cycle() == 0 && time.Now().Before(deadline) {
		d.SetSearchDesired(ctx, root, lang.Some(*movetime), nil)
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(time.Duration(*movetime+500) * time.Millisecond)

	d.Shutdown(ctx)
	h.out.Flush()
}

// startpos is a trivial GameNode standing in for a real chess model: just enough for this demo
// to launch the driver against the standard starting position. A production hub supplies its
// own GameNode backed by an actual game tree.
type startpos struct{}

func (startpos) FEN() string                                { return "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1" }
func (startpos) History() []string                          { return nil }
func (startpos) HistoryChess960() []string                  { return nil }
func (startpos) ValidateMoves(candidates []string) []string { return candidates }
func (startpos) Destroyed() bool                             { return false }

// consoleHub implements driver.Hub by printing every callback to a line-oriented stream.
type consoleHub struct {
	out *bufio.Writer

	cycle, subcycle uint64
}

func (h *consoleHub) ReceiveBestMove(line string, node driver.GameNode) {
	fmt.Fprintf(h.out, "bestmove: %v (fen=%v)\n", line, node.FEN())
}

func (h *consoleHub) ReceiveInfo(d *driver.Driver, node driver.GameNode, line string) {
	fmt.Fprintf(h.out, "info: %v\n", line)
}

func (h *consoleHub) ReceiveError(line string) {
	fmt.Fprintf(h.out, "stderr: %v\n", line)
}

func (h *consoleHub) ReceiveMisc(line string) {
	fmt.Fprintf(h.out, "misc: %v\n", line)
}

func (h *consoleHub) AckEngineStart(path string) {
	fmt.Fprintf(h.out, "engine started: %v\n", path)
}

func (h *consoleHub) AckSetOption(name, value string) {
	fmt.Fprintf(h.out, "option acked: %v=%v\n", name, value)
}

func (h *consoleHub) AlertSpawnFailure(err error) {
	fmt.Fprintf(h.out, "spawn failed: %v\n", err)
}

func (h *consoleHub) AlertSendFailure(err error) {
	fmt.Fprintf(h.out, "send failed: %v\n", err)
}

func (h *consoleHub) Cycle(n uint64)    { h.cycle = n }
func (h *consoleHub) Subcycle(n uint64) { h.subcycle = n }

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"

	persistlog "unseen.ai/internal/persistence/log"
	"unseen.ai/internal/sim/events"
)

var (
	styleHeader  = color.Style{color.FgCyan, color.OpBold}
	styleOK      = color.Style{color.FgGreen}
	styleWarn    = color.Style{color.FgYellow, color.OpBold}
	styleDanger  = color.Style{color.FgRed, color.OpBold}
	styleSubtle  = color.Style{color.FgGray}
	stylePursuit = color.Style{color.FgMagenta, color.OpBold}
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "state":
		stateCmd(args)
	case "caves":
		cavesCmd(args)
	case "timers":
		timersCmd(args)
	case "events":
		eventsCmd(args)
	case "snapshots":
		snapshotsCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <state|caves|timers|events|snapshots> [flags]")
}

// worldFlags registers the flags every subcommand shares.
type worldFlags struct {
	dataDir *string
	worldID *string
	noColor *bool
}

func addWorldFlags(fs *flag.FlagSet) worldFlags {
	return worldFlags{
		dataDir: fs.String("data", "./data", "runtime data directory"),
		worldID: fs.String("world", "world_1", "world id"),
		noColor: fs.Bool("no_color", false, "disable colored output"),
	}
}

func (w worldFlags) dir() string {
	if *w.noColor {
		color.Disable()
	}
	return filepath.Join(*w.dataDir, "worlds", *w.worldID)
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	wf := addWorldFlags(fs)
	kind := fs.String("kind", "", "only events of this kind, e.g. PURSUIT_CUE")
	since := fs.Uint64("since_tick", 0, "skip events before this tick")
	limit := fs.Int("limit", 0, "stop after this many events (0 = all)")
	fromDB := fs.Bool("db", false, "read the sqlite index instead of the zstd event log")
	asJSON := fs.Bool("json", false, "print raw JSON lines")
	_ = fs.Parse(args)

	worldDir := wf.dir()
	want := events.Kind(strings.ToUpper(strings.TrimSpace(*kind)))
	n := 0
	emit := func(e events.Event) bool {
		if want != "" && e.Kind != want {
			return true
		}
		if e.Tick < *since {
			return true
		}
		if *asJSON {
			printJSON(e)
		} else {
			fmt.Println(formatEvent(e))
		}
		n++
		return *limit <= 0 || n < *limit
	}

	if *fromDB {
		idx := openIndex(worldDir)
		defer idx.Close()
		evs, err := idx.Events(want, 0)
		if err != nil {
			fatal("query events", err)
		}
		for _, e := range evs {
			if !emit(e) {
				break
			}
		}
		return
	}

	err := persistlog.ReadEvents(persistlog.EventsDir(worldDir), emit)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println(styleSubtle.Render("no event log yet"))
		return
	}
	if err != nil {
		fatal("read events", err)
	}
}

// formatEvent renders one event on a line, colored by how alarming it is.
func formatEvent(e events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8d ", e.Tick)
	b.WriteString(kindStyle(e.Kind).Sprintf("%-18s", e.Kind))
	if e.ID != "" {
		b.WriteString(" id=" + e.ID)
	}
	if e.Observer != "" {
		b.WriteString(" observer=" + e.Observer)
	}
	if e.Pos != nil {
		fmt.Fprintf(&b, " pos=%d,%d,%d", e.Pos.X, e.Pos.Y, e.Pos.Z)
	}
	if e.Reason != "" {
		b.WriteString(" " + styleSubtle.Sprintf("reason=%s", e.Reason))
	}
	if len(e.Data) > 0 {
		raw, _ := json.Marshal(e.Data)
		b.WriteString(" " + styleSubtle.Render(string(raw)))
	}
	return b.String()
}

func kindStyle(k events.Kind) color.Style {
	switch k {
	case events.KindPursuitCaught, events.KindCaveRejected, events.KindPursuitRejected:
		return styleDanger
	case events.KindPursuitPaused, events.KindPursuitTimeout, events.KindPursuitExhausted:
		return styleWarn
	case events.KindCaveCreated, events.KindObserverJoin:
		return styleOK
	case events.KindSound, events.KindTimerFired, events.KindObserverLeave:
		return styleSubtle
	}
	if strings.HasPrefix(string(k), "PURSUIT_") {
		return stylePursuit
	}
	return color.Style{}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

func fatal(what string, err error) {
	fmt.Fprintln(os.Stderr, styleDanger.Render(what+":"), err)
	os.Exit(1)
}

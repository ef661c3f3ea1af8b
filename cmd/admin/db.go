package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"unseen.ai/internal/persistence/indexdb"
	"unseen.ai/internal/persistence/kv"
	"unseen.ai/internal/sim/cave"
	"unseen.ai/internal/sim/director"
	"unseen.ai/internal/sim/pursuit"
	"unseen.ai/internal/sim/runtime"
	"unseen.ai/internal/sim/voxel"
)

// openIndex opens the world's sqlite store. A missing file is an error rather than a
// fresh empty database.
func openIndex(worldDir string) *indexdb.SQLiteIndex {
	path := filepath.Join(worldDir, "index.sqlite")
	if _, err := os.Stat(path); err != nil {
		fatal("open store", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fatal("open store", err)
	}
	return idx
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	wf := addWorldFlags(fs)
	baseURL := fs.String("url", "", "query a running server instead of the store, e.g. http://127.0.0.1:8080")
	_ = fs.Parse(args)

	worldDir := wf.dir()
	if strings.TrimSpace(*baseURL) != "" {
		st, err := fetchState(*baseURL, 5*time.Second)
		if err != nil {
			fatal("request", err)
		}
		printStatus(st)
		return
	}

	idx := openIndex(worldDir)
	defer idx.Close()
	var st pursuit.State
	ok, err := kv.GetJSON(idx, pursuit.StateKey, &st)
	if err != nil {
		fatal("read pursuit state", err)
	}
	tick, _, err := kv.GetInt(idx, runtime.TickKey)
	if err != nil {
		fatal("read tick", err)
	}
	fmt.Println(styleHeader.Sprintf("world %s", *wf.worldID), styleSubtle.Sprintf("tick %d", tick))
	if !ok {
		st.Phase = pursuit.PhaseIdle
	}
	printPursuit(st)
}

func printStatus(st runtime.Status) {
	fmt.Println(styleHeader.Sprintf("world %s", st.WorldID), styleSubtle.Sprintf("tick %d", st.Tick))
	fmt.Printf("  loaded chunks %d  digest %s\n", st.LoadedChunks, styleSubtle.Render(shortDigest(st.Digest)))
	if st.Err != "" {
		fmt.Println(" ", styleDanger.Render("error: "+st.Err))
	}
	fmt.Println(styleHeader.Render("observers"))
	if len(st.Observers) == 0 {
		fmt.Println(styleSubtle.Render("  none"))
	}
	for _, o := range st.Observers {
		fmt.Printf("  %-6s pos=%.1f,%.1f,%.1f yaw=%.0f pitch=%.0f\n", o.ID, o.Pos[0], o.Pos[1], o.Pos[2], o.Yaw, o.Pitch)
	}
	printPursuit(st.Pursuit)
	printTimers(st.Timers)
	printAnchors(st.Caves)
}

func printPursuit(st pursuit.State) {
	phase := styleOK.Render(string(st.Phase))
	switch st.Phase {
	case pursuit.PhaseWalking:
		phase = stylePursuit.Render(string(st.Phase))
	case pursuit.PhasePaused:
		phase = styleWarn.Render(string(st.Phase))
	}
	fmt.Println(styleHeader.Render("pursuit"), phase)
	if !st.Active() {
		return
	}
	fmt.Printf("  run %s target %s\n", st.RunID, st.Target)
	fmt.Printf("  step %d/%d  steps taken %d  elapsed %d ticks\n", st.StepIndex, len(st.Path), st.StepsTaken, st.Elapsed)
	if st.HasLast {
		fmt.Printf("  last cue at %d,%d,%d\n", st.LastPos.X, st.LastPos.Y, st.LastPos.Z)
	}
	if st.Phase == pursuit.PhasePaused {
		fmt.Printf("  paused (%s) at step %d,%d,%d, observer was at %d,%d,%d\n", st.PauseReason,
			st.PauseStep.X, st.PauseStep.Y, st.PauseStep.Z,
			st.PauseObserver.X, st.PauseObserver.Y, st.PauseObserver.Z)
	}
}

func cavesCmd(args []string) {
	fs := flag.NewFlagSet("caves", flag.ExitOnError)
	wf := addWorldFlags(fs)
	_ = fs.Parse(args)

	idx := openIndex(wf.dir())
	defer idx.Close()
	anchors, err := kv.PosList(idx, cave.AnchorsKey)
	if err != nil {
		fatal("read anchors", err)
	}
	printAnchors(anchors)
}

func printAnchors(anchors []voxel.Pos) {
	fmt.Println(styleHeader.Render("caves"), styleSubtle.Sprintf("%d", len(anchors)))
	for i, a := range anchors {
		fmt.Printf("  %3d  %s\n", i+1, a.String())
	}
}

func timersCmd(args []string) {
	fs := flag.NewFlagSet("timers", flag.ExitOnError)
	wf := addWorldFlags(fs)
	_ = fs.Parse(args)

	idx := openIndex(wf.dir())
	defer idx.Close()
	out := map[string]int64{}
	for _, k := range []string{director.CaveTimerKey, director.PursuitTimerKey} {
		v, ok, err := kv.GetInt(idx, k)
		if err != nil {
			fatal("read timers", err)
		}
		if ok {
			out[k] = v
		}
	}
	printTimers(out)
}

func printTimers(timers map[string]int64) {
	fmt.Println(styleHeader.Render("timers"))
	keys := make([]string, 0, len(timers))
	for k := range timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		fmt.Println(styleSubtle.Render("  not armed"))
	}
	for _, k := range keys {
		v := timers[k]
		s := styleOK
		if v <= 20 {
			s = styleWarn
		}
		fmt.Printf("  %-14s %s\n", k, s.Sprintf("%d ticks", v))
	}
}

func snapshotsCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	wf := addWorldFlags(fs)
	_ = fs.Parse(args)

	idx := openIndex(wf.dir())
	defer idx.Close()
	rows, err := idx.Snapshots()
	if err != nil {
		fatal("query snapshots", err)
	}
	fmt.Println(styleHeader.Render("snapshots"), styleSubtle.Sprintf("%d", len(rows)))
	for _, r := range rows {
		fmt.Printf("  tick %-8d chunks %-5d seed %-8d %s %s\n", r.Tick, r.Chunks, r.Seed, styleSubtle.Render(shortDigest(r.Digest)), r.Path)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

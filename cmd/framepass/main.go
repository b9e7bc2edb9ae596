/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"framepass/internal/config"
	"framepass/internal/crash"
	"framepass/internal/dispatch"
	"framepass/internal/element"
	"framepass/internal/frame"
	applog "framepass/internal/log"
	"framepass/internal/report"
	"framepass/internal/scene"
	"framepass/internal/telemetry"
	"framepass/internal/trace"
	"framepass/internal/tracestore"
	"framepass/internal/version"

	"github.com/m1gwings/treedrawer/tree"
)

func usage() {
	fmt.Println("framepass: pass-ordered dispatch over element trees")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  framepass version|-v|--version           Show version")
	fmt.Println("  framepass run <scene> [frames]            Tick the scene and print the handler trace")
	fmt.Println("  framepass relayout <scene>                Force every handler of every element once")
	fmt.Println("  framepass tree <scene>                    Draw the element tree")
	fmt.Println("  framepass traces [limit]                  List stored frames")
	fmt.Println("  framepass report <scene> <out.pdf|png>    Render layout and trace")
	fmt.Println("  framepass push                            Copy stored frames to Postgres")
}

// app bundles what every command needs.
type app struct {
	cfg    config.AppConfig
	secret string
	log    *slog.Logger
	tel    *telemetry.Client
	driver *frame.Driver
}

// CrashDir, LastFrame and WriteFrames make app a crash.Source that
// reports on the driver once one exists.
func (a *app) CrashDir() string {
	if a.driver == nil {
		return ""
	}
	return a.driver.CrashDir()
}

func (a *app) LastFrame() string {
	if a.driver == nil {
		return ""
	}
	return a.driver.LastFrame()
}

func (a *app) WriteFrames(w io.Writer) error {
	if a.driver == nil {
		_, err := io.WriteString(w, "[]\n")
		return err
	}
	return a.driver.WriteFrames(w)
}

func main() {
	cfg, secret, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a := &app{cfg: cfg, secret: secret, log: applog.WithComponent("cli")}
	defer crash.Recover(a)
	if cfgErr != nil {
		fail(a.log, "config", cfgErr)
	}
	telemetry.NewDefault(telemetry.FromEnv().WithOptIn(cfg.General.TelemetryOptIn))
	a.tel = telemetry.Default()
	defer a.tel.Close()

	args := os.Args
	a.log.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	ctx := context.Background()
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
	case "run":
		need(args, 3, "run requires <scene>")
		frames := 1
		if len(args) > 3 {
			n, err := strconv.Atoi(args[3])
			if err != nil || n < 1 {
				fmt.Println("frames must be a positive number")
				os.Exit(2)
			}
			frames = n
		}
		a.run(ctx, args[2], frames)
	case "relayout":
		need(args, 3, "relayout requires <scene>")
		a.relayout(ctx, args[2])
	case "tree":
		need(args, 3, "tree requires <scene>")
		sc := a.load(args[2])
		fmt.Println(drawTree(sc.Root))
	case "traces":
		limit := 20
		if len(args) > 2 {
			if n, err := strconv.Atoi(args[2]); err == nil && n > 0 {
				limit = n
			}
		}
		a.traces(ctx, limit)
	case "report":
		need(args, 4, "report requires <scene> and <out.pdf|out.png>")
		a.report(ctx, args[2], args[3])
	case "push":
		a.push(ctx)
	default:
		usage()
		os.Exit(2)
	}
	a.tel.Flush(ctx)
}

func need(args []string, n int, msg string) {
	if len(args) < n {
		fmt.Println(msg)
		usage()
		os.Exit(2)
	}
}

func fail(l *slog.Logger, what string, err error) {
	l.Error(what+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func (a *app) load(path string) *scene.Scene {
	sc, err := scene.Load(path)
	if err != nil {
		fail(a.log, "load scene", err)
	}
	a.log.Info("scene loaded", slog.String("scene", sc.Name), slog.Int("elements", len(sc.Index)))
	return sc
}

func (a *app) openStore() *tracestore.Store {
	dir, err := a.cfg.Trace.ResolveDir()
	if err != nil {
		fail(a.log, "resolve trace dir", err)
	}
	st, err := tracestore.Open(dir)
	if err != nil {
		fail(a.log, "open trace store", err)
	}
	return st
}

func (a *app) newDriver(sc *scene.Scene, sink tracestore.Sink) *frame.Driver {
	passes, _ := a.cfg.Dispatch.PassList()
	finished, _ := a.cfg.Dispatch.FinishedPolicy()
	recursive := a.cfg.Dispatch.IsRecursive()
	dir, _ := a.cfg.Trace.ResolveDir()
	a.driver = frame.New(sc.Root, frame.Options{
		Passes:    passes,
		Finished:  finished,
		Recursive: &recursive,
		Viewport:  sc.Viewport,
		History: trace.NewHistory(trace.Config{
			MaxBytes:    a.cfg.Trace.MaxBytes,
			MaxPerRoot:  a.cfg.Trace.MaxPerRoot,
			MinInterval: a.cfg.Trace.Coalesce(),
		}),
		Sink:      sink,
		Telemetry: a.tel,
		CrashDir:  dir,
	})
	return a.driver
}

// sinks opens the local store and, when configured, the Postgres sink.
func (a *app) sinks(ctx context.Context) (*tracestore.Store, *tracestore.Fanout) {
	st := a.openStore()
	sinks := []tracestore.Sink{st}
	if dsn, err := a.cfg.Trace.PostgresURL(a.secret); err == nil && dsn != "" {
		pg, err := tracestore.OpenPostgres(ctx, dsn)
		if err != nil {
			a.log.Warn("postgres sink unavailable", slog.Any("err", err))
		} else {
			sinks = append(sinks, pg)
		}
	}
	return st, tracestore.NewFanout(sinks...)
}

func (a *app) run(ctx context.Context, path string, frames int) {
	sc := a.load(path)
	_, fan := a.sinks(ctx)
	defer func() { _ = fan.Close() }()
	force, _ := a.cfg.Dispatch.ForceLevel()
	d := a.newDriver(sc, fan)
	for i := 0; i < frames; i++ {
		f, err := d.Tick(ctx, force)
		printFrame(f)
		if err != nil {
			fail(a.log, "frame", err)
		}
		force = dispatch.ForceNone
	}
}

func (a *app) relayout(ctx context.Context, path string) {
	sc := a.load(path)
	_, fan := a.sinks(ctx)
	defer func() { _ = fan.Close() }()
	f, err := a.newDriver(sc, fan).Relayout(ctx)
	printFrame(f)
	if err != nil {
		fail(a.log, "relayout", err)
	}
	for _, el := range sc.Elements() {
		if n, ok := element.BaseOf(el); ok {
			b := n.Bounds
			fmt.Printf("  %-16s %6.0f %6.0f %6.0f %6.0f\n", dispatch.ElementName(el), b.X, b.Y, b.W, b.H)
		}
	}
}

func (a *app) traces(ctx context.Context, limit int) {
	st := a.openStore()
	defer func() { _ = st.Close() }()
	frames, err := st.Recent(ctx, limit)
	if err != nil {
		fail(a.log, "list traces", err)
	}
	for _, f := range frames {
		fmt.Printf("%s  %s  %s\n", f.TS.Local().Format(time.DateTime), f.ID, f.Summary())
	}
}

func (a *app) report(ctx context.Context, path, out string) {
	sc := a.load(path)
	d := a.newDriver(sc, nil)
	force, _ := a.cfg.Dispatch.ForceLevel()
	if _, err := d.Tick(ctx, force); err != nil {
		fail(a.log, "frame", err)
	}
	in := report.Input{Title: sc.Name, Root: sc.Root, Frames: d.History().Frames(dispatch.ElementName(sc.Root))}
	if err := report.WriteFile(out, in); err != nil {
		fail(a.log, "report", err)
	}
	fmt.Println("Wrote", out)
}

func (a *app) push(ctx context.Context) {
	dsn, err := a.cfg.Trace.PostgresURL(a.secret)
	if err != nil {
		fail(a.log, "postgres dsn", err)
	}
	if dsn == "" {
		fmt.Printf("No Postgres DSN configured (set trace.postgres_dsn or %s)\n", config.EnvPostgresDSN)
		os.Exit(2)
	}
	st := a.openStore()
	defer func() { _ = st.Close() }()
	pg, err := tracestore.OpenPostgres(ctx, dsn)
	if err != nil {
		fail(a.log, "open postgres", err)
	}
	defer func() { _ = pg.Close() }()
	n, err := tracestore.Push(ctx, st, pg, 200)
	if err != nil {
		fail(a.log, "push", err)
	}
	fmt.Printf("Pushed %d frames\n", n)
}

func printFrame(f trace.Frame) {
	fmt.Println(f.Summary())
	for i, s := range f.Steps {
		fmt.Printf("  %3d  %s\n", i+1, s)
	}
}

// drawTree renders el and its descendants as an ASCII tree.
func drawTree(el dispatch.Element) string {
	t := tree.NewTree(tree.NodeString(nodeLabel(el)))
	addChildren(t, el)
	return t.String()
}

func addChildren(t *tree.Tree, el dispatch.Element) {
	for _, c := range el.Children() {
		addChildren(t.AddChild(tree.NodeString(nodeLabel(c))), c)
	}
}

func nodeLabel(el dispatch.Element) string {
	return fmt.Sprintf("%s %T", dispatch.ElementName(el), el)
}

// Command animscript runs Tengo animation scenarios against a headless engine and reports the
// final property values and any failed expectations.
//
//	animscript [-config anim.yaml] [-host] [-watch] scenario.tengo...
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/scenario"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	forceHost := flag.Bool("host", false, "integrate on the host even if an accelerator is available")
	watch := flag.Bool("watch", false, "re-run scenarios when they or the configuration change")
	dt := flag.Float64("dt", 0, "default tick step in seconds (default 1/tickRate)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] scenario.tengo...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	scripts := flag.Args()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	runner := scenario.NewRunner(
		scenario.WithConfig(*cfg),
		scenario.WithTickDelta(float32(*dt)),
		scenario.WithEngineOptions(engine.WithForceHost(*forceHost)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := runAll(ctx, runner, scripts)
	if !*watch {
		if failed {
			os.Exit(1)
		}
		return
	}

	if err := watchAndRun(ctx, runner, *configPath, scripts); err != nil {
		log.Fatalf("[Watch] %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

// runAll runs every script and reports whether any of them failed.
func runAll(ctx context.Context, runner scenario.Runner, scripts []string) bool {
	failed := false
	for _, path := range scripts {
		if !runOne(ctx, runner, path) {
			failed = true
		}
	}
	return failed
}

func runOne(ctx context.Context, runner scenario.Runner, path string) bool {
	rep, err := runner.RunFile(ctx, path)
	if err != nil {
		log.Printf("[Scenario] %v", err)
		return false
	}
	printReport(rep)
	return rep.Passed()
}

func printReport(rep *scenario.Report) {
	status := "ok"
	if !rep.Passed() {
		status = "FAIL"
	}
	log.Printf("[Scenario] %s: %s, %d ticks, %.3fs simulated", rep.Name, status, rep.Steps, rep.Elapsed)

	names := make([]string, 0, len(rep.Values))
	for name := range rep.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := rep.Values[name]
		log.Printf("[Scenario]   %-24s (%.4f, %.4f, %.4f, %.4f)", name, v[0], v[1], v[2], v[3])
	}
	for _, f := range rep.Failures {
		log.Printf("[Scenario]   expectation failed: %s", f)
	}
}

// watchAndRun re-runs a script when it changes, and every script when the configuration changes.
func watchAndRun(ctx context.Context, runner scenario.Runner, configPath string, scripts []string) error {
	paths := append([]string(nil), scripts...)
	if configPath != "" {
		paths = append(paths, configPath)
	}
	w, err := config.NewWatcher(paths...)
	if err != nil {
		return err
	}
	defer w.Close()

	byPath := make(map[string]string, len(scripts))
	for _, s := range scripts {
		abs, err := filepath.Abs(s)
		if err != nil {
			return err
		}
		byPath[abs] = s
	}
	configAbs := ""
	if configPath != "" {
		if configAbs, err = filepath.Abs(configPath); err != nil {
			return err
		}
	}

	log.Printf("[Watch] watching %d file(s), interrupt to stop", len(paths))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Watch] %v", err)
		case path, ok := <-w.Events:
			if !ok {
				return nil
			}
			if path == configAbs {
				cfg, err := config.Load(configPath)
				if err != nil {
					log.Printf("[Config] keeping previous configuration: %v", err)
					continue
				}
				if err := runner.SetConfig(*cfg); err != nil {
					log.Printf("[Config] keeping previous configuration: %v", err)
					continue
				}
				log.Printf("[Config] reloaded %s", configPath)
				runAll(ctx, runner, scripts)
				continue
			}
			if script, ok := byPath[path]; ok {
				runOne(ctx, runner, script)
			}
		}
	}
}

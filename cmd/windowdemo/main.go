// Command windowdemo animates a desktop window with the engine.
//
//	arrows    tween the window by 120 pixels; repeated presses compose
//	1-4       tween curve: linear, ease, elastic, bounce
//	click     spring the window so it centers on the cursor
//	space     spring the window back to where it started
//	S         spring the window between its small and large size
//	F         fade the window in or out
//	R         cancel every animation
//	Esc       quit
package main

import (
	"context"
	"flag"
	"log"
	"runtime"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/config"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
	"github.com/Carmen-Shannon/oxy-anim/engine/window"
)

const step = 120

var curves = map[uint32]string{
	window.Key1: "linear",
	window.Key2: "ease",
	window.Key3: "elastic",
	window.Key4: "bounce",
}

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file, reloaded on change")
	profile := flag.Bool("profile", false, "log engine statistics periodically")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("[Config] %v", err)
		}
		cfg = *loaded
	}

	eng := engine.NewEngine(engine.WithConfig(cfg), engine.WithProfiling(*profile))
	defer eng.Release()
	log.Printf("[Demo] integrating on the %s backend", eng.BackendType())

	win, err := window.NewWindow(
		window.WithTitle("oxy-anim window demo"),
		window.WithSize(640, 400),
		window.WithPosition(200, 200),
		window.WithSizeLimits(320, 200, 1280, 800),
	)
	if err != nil {
		log.Fatalf("[Demo] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[Demo] engine stopped: %v", err)
		}
	}()
	if *configPath != "" {
		go watchConfig(ctx, eng, *configPath)
	}

	d := newDemo(eng, win)
	win.SetKeyDownCallback(d.onKey)
	win.SetMouseDownCallback(d.onClick)
	win.ProcessMessages()

	cancel()
	if err := win.Close(); err != nil {
		log.Printf("[Demo] %v", err)
	}
}

// demo maps input to animations.
type demo struct {
	eng   engine.Engine
	win   window.Window
	tween engine.TweenParams

	home    common.Vec4
	small   common.Vec4
	large   common.Vec4
	grown   bool
	visible bool

	// chainTarget is where the running position tweens will leave the window.
	chainTarget common.Vec4
	chaining    bool
}

func newDemo(eng engine.Engine, win window.Window) *demo {
	getPos, _, _ := win.Property(window.PropertyPosition)
	getSize, _, _ := win.Property(window.PropertySize)
	small := getSize()
	return &demo{
		eng:     eng,
		win:     win,
		tween:   eng.DefaultTweenParams(),
		home:    getPos(),
		small:   small,
		large:   small.Scale(1.6),
		visible: true,
	}
}

func (d *demo) onKey(key uint32) {
	switch key {
	case window.KeyLeft:
		d.nudge(common.Vec4{-step, 0})
	case window.KeyRight:
		d.nudge(common.Vec4{step, 0})
	case window.KeyUp:
		d.nudge(common.Vec4{0, -step})
	case window.KeyDown:
		d.nudge(common.Vec4{0, step})
	case window.KeySpace:
		d.chaining = false
		d.spring(window.PropertyPosition, d.home)
	case window.KeyS:
		d.grown = !d.grown
		target := d.small
		if d.grown {
			target = d.large
		}
		d.spring(window.PropertySize, target)
	case window.KeyF:
		d.visible = !d.visible
		target := common.Vec4{0.35}
		if d.visible {
			target = common.Vec4{1}
		}
		d.tweenTo(window.PropertyOpacity, target)
	case window.KeyR:
		d.eng.Remove(d.win.ID())
		log.Printf("[Demo] cancelled all animations")
	default:
		if name, ok := curves[key]; ok {
			c, err := curve.Parse(name)
			if err != nil {
				log.Printf("[Demo] %v", err)
				return
			}
			d.tween.Curve = c
			log.Printf("[Demo] tween curve: %s", name)
		}
	}
}

func (d *demo) onClick(x, y int) {
	getSize, _, _ := d.win.Property(window.PropertySize)
	target := common.Vec4{float32(x), float32(y)}.Sub(getSize().Scale(0.5))
	d.chaining = false
	d.spring(window.PropertyPosition, target)
}

// nudge tweens the window by offset. While position tweens are running the offset is added to
// the target of the chain, so rapid presses compose.
func (d *demo) nudge(offset common.Vec4) {
	base := d.chainTarget
	if !d.chaining || len(d.eng.Animations(d.win.ID(), window.PropertyPosition)) == 0 {
		getPos, _, _ := d.win.Property(window.PropertyPosition)
		base = getPos()
	}
	d.chainTarget = base.Add(offset)
	d.chaining = true
	d.tweenTo(window.PropertyPosition, d.chainTarget)
}

func (d *demo) tweenTo(name string, target common.Vec4) {
	if _, err := window.TweenTo(d.eng, d.win, name, target, d.tween, logCompletion(name)); err != nil {
		log.Printf("[Demo] %v", err)
	}
}

func (d *demo) spring(name string, target common.Vec4) {
	if _, err := window.SpringTo(d.eng, d.win, name, target, engine.SpringParams{}, logCompletion(name)); err != nil {
		log.Printf("[Demo] %v", err)
	}
}

func logCompletion(name string) common.Completion {
	return func(finished bool) {
		if finished {
			log.Printf("[Demo] %s animation finished", name)
		} else {
			log.Printf("[Demo] %s animation cancelled", name)
		}
	}
}

// watchConfig applies configuration changes to the running engine.
func watchConfig(ctx context.Context, eng engine.Engine, path string) {
	w, err := config.NewWatcher(path)
	if err != nil {
		log.Printf("[Config] not watching %s: %v", path, err)
		return
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("[Config] %v", err)
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			cfg, err := config.Load(path)
			if err != nil {
				log.Printf("[Config] keeping previous configuration: %v", err)
				continue
			}
			if err := eng.ApplyConfig(*cfg); err != nil {
				log.Printf("[Config] keeping previous configuration: %v", err)
			}
		}
	}
}

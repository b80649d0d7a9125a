package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/driftwood-engine/driftwood/common"
	"github.com/driftwood-engine/driftwood/config"
	"github.com/driftwood-engine/driftwood/entity"
	"github.com/driftwood-engine/driftwood/script"
	"github.com/driftwood-engine/driftwood/scripts"
)

// Game wires the script runtime, the entity directory and the hot-reload
// watcher into a fixed-tick headless loop.
type Game struct {
	cfg     config.Config
	log     *zap.Logger
	rt      *script.Runtime
	dir     *entity.Directory
	watcher *script.Watcher
}

func NewGame(cfg config.Config, log *zap.Logger) (*Game, error) {
	rt := script.NewRuntime(log)
	dir := entity.NewDirectory(rt, log)
	scripts.SearchDir = cfg.ScriptDir
	dir.SetScriptLoader(scripts.Load)

	g := &Game{cfg: cfg, log: log, rt: rt, dir: dir}

	if cfg.HotReload {
		w, err := script.NewWatcher(cfg.ScriptDir)
		if err != nil {
			// Watching is best effort; embedded scripts still work.
			log.Warn("script watcher unavailable", zap.String("dir", cfg.ScriptDir), zap.Error(err))
		} else {
			g.watcher = w
		}
	}

	if err := g.spawn(); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// spawn populates the world with the built-in demo behaviors: a drifting
// blinker, a target that tracks damage, and an attacker on a repeating timer.
func (g *Game) spawn() error {
	blinker := g.dir.Create()
	blinker.AddTag("decoration")
	blinker.SetPosition(common.Vec2{X: 40, Y: 12})
	if err := g.dir.BindBehaviorFile(blinker, "blinker.tengo"); err != nil {
		return err
	}
	drift, err := entity.NewComponent(entity.KindVelocity)
	if err != nil {
		return err
	}
	drift.Payload().(*entity.VelocityPayload).DX = 4
	if !blinker.Add(drift) {
		return fmt.Errorf("attach drift to blinker")
	}

	target := g.dir.Create()
	target.AddTag("enemy")
	if err := g.dir.BindBehaviorFile(target, "damage.tengo"); err != nil {
		return err
	}

	attacker := g.dir.Create()
	attacker.AddTag("player")
	attacker.SetPersistent(true)
	if err := g.dir.BindBehaviorFile(attacker, "attacker.tengo"); err != nil {
		return err
	}
	swing, err := entity.NewComponent(entity.KindTimer)
	if err != nil {
		return err
	}
	tp := swing.Payload().(*entity.TimerPayload)
	tp.Duration = 1
	tp.Handler = "attack"
	tp.Repeat = true
	if !attacker.Add(swing) {
		return fmt.Errorf("attach swing timer to attacker")
	}
	return nil
}

// Run ticks the world until ctx is cancelled or maxTicks elapse (0 means no
// limit). Script reloads and watcher errors are handled between ticks.
func (g *Game) Run(ctx context.Context, maxTicks int) error {
	dt := 1.0 / float64(g.cfg.TickRate)
	ticker := time.NewTicker(time.Duration(float64(time.Second) * dt))
	defer ticker.Stop()

	g.log.Info("engine running",
		zap.Int("tick_rate", g.cfg.TickRate),
		zap.Int("entities", g.dir.Count()),
		zap.Bool("hot_reload", g.watcher != nil))

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			g.log.Info("shutting down", zap.Int("ticks", ticks))
			return nil
		case <-ticker.C:
			g.dir.Update(dt)
			g.dir.Sweep()
			ticks++
			if maxTicks > 0 && ticks >= maxTicks {
				g.log.Info("tick limit reached", zap.Int("ticks", ticks))
				return nil
			}
		case path := <-g.watchEvents():
			name := filepath.Base(path)
			if err := g.dir.ReloadScript(name); err != nil {
				g.log.Warn("script reload failed", zap.String("script", name), zap.Error(err))
				continue
			}
			g.log.Info("script reloaded", zap.String("script", name))
		case err := <-g.watchErrors():
			g.log.Warn("script watcher error", zap.Error(err))
		}
	}
}

func (g *Game) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
	g.dir.Sweep()
	g.rt.Close()
}

// Nil channels when no watcher is running, so the select cases never fire.
func (g *Game) watchEvents() <-chan string {
	if g.watcher == nil {
		return nil
	}
	return g.watcher.Events
}

func (g *Game) watchErrors() <-chan error {
	if g.watcher == nil {
		return nil
	}
	return g.watcher.Errors
}

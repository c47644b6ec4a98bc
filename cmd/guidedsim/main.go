// cmd/guidedsim/main.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// guidedsim flies a scripted guided mission on the simulated vehicle and
// records the targets it accepted: a smoke test for the control core that
// needs no hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"copterguided/guided"
	"copterguided/log"
	"copterguided/params"
	"copterguided/simnav"
	"copterguided/telem"
)

var paramFile = flag.String("params", "guidedsim.yaml", "vehicle parameter file")
var telemDir = flag.String("telem", "", "directory for target telemetry (empty disables)")
var realtime = flag.Bool("realtime", false, "pace the simulation at wall-clock rate")
var maxSim = flag.Duration("maxsim", 5*time.Minute, "maximum simulated time before giving up")

// scriptStep issues guided commands at a simulated time offset. A step that
// starts a mission command returns it so the tick loop can poll its
// completion.
type scriptStep struct {
	at  time.Duration
	run func(*guided.Mode, *simnav.Vehicle) (*guided.Command, error)
}

func script() []scriptStep {
	simple := func(f func(*guided.Mode, *simnav.Vehicle) error) func(*guided.Mode, *simnav.Vehicle) (*guided.Command, error) {
		return func(m *guided.Mode, v *simnav.Vehicle) (*guided.Command, error) {
			return nil, f(m, v)
		}
	}

	return []scriptStep{
		{0, simple(func(m *guided.Mode, v *simnav.Vehicle) error {
			v.Motors.Arm()
			v.Motors.SetAutoArmed(true)
			return m.StartTakeoff(1000)
		})},
		{20 * time.Second, simple(func(m *guided.Mode, v *simnav.Vehicle) error {
			return m.SetPositionTarget([3]float32{5000, 2000, 1200}, guided.YawSpec{}, false)
		})},
		{45 * time.Second, simple(func(m *guided.Mode, v *simnav.Vehicle) error {
			m.SetVelocityTarget([3]float32{-200, 100, 0}, guided.YawSpec{}, true)
			return nil
		})},
		// The velocity target then goes stale on purpose; the core brings
		// the vehicle to a stop on its own before the circle begins.
		{65 * time.Second, func(m *guided.Mode, v *simnav.Vehicle) (*guided.Command, error) {
			cmd := guided.Command{
				ID:     guided.CommandLoiterTurns,
				Index:  1,
				Loc:    v.Est.LocationFromNEU([3]float32{2000, 2000, 1000}),
				Param1: 15<<8 | 2, // 15 m radius, two laps
			}
			if !m.StartCommand(cmd) {
				return nil, fmt.Errorf("circle command rejected")
			}
			return &cmd, nil
		}},
	}
}

func main() {
	flag.Parse()

	pf, err := params.Load(*paramFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "guidedsim: %v\n", err)
		os.Exit(1)
	}

	lg := log.New(pf.Log.Level, pf.Log.Dir)

	var rec *telem.Recorder
	if *telemDir != "" {
		rec = telem.New(*telemDir)
		defer rec.Close()
	}

	cfg := simnav.DefaultConfig()
	cfg.LoopRateHz = pf.Vehicle.LoopRateHz
	v := simnav.NewVehicle(cfg)

	deps := v.Deps()
	if rec != nil {
		deps.Recorder = rec
	}

	mode, err := guided.New(deps, pf.ModeParams(), lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "guidedsim: %v\n", err)
		os.Exit(1)
	}
	mode.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return fly(ctx, lg, mode, v, pf.Vehicle.LoopRateHz) })

	if err := eg.Wait(); err != nil {
		lg.Errorf("simulation failed: %v", err)
		fmt.Fprintf(os.Stderr, "guidedsim: %v\n", err)
		os.Exit(1)
	}

	pos := v.Position()
	fmt.Printf("flight complete: position %.0f/%.0f north/east cm, altitude %.0f cm\n",
		pos[0], pos[1], pos[2])
}

// fly runs the tick loop: scripted commands at their offsets, one Run per
// simulated tick, and the lap-verify poll that ends the mission.
func fly(ctx context.Context, lg *log.Logger, mode *guided.Mode, v *simnav.Vehicle, rateHz float32) error {
	steps := script()
	start := v.Now()
	tickDur := time.Duration(float64(time.Second) / float64(rateHz))

	var pace *time.Ticker
	if *realtime {
		pace = time.NewTicker(tickDur)
		defer pace.Stop()
	}

	var circleCmd *guided.Command
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if pace != nil {
			<-pace.C
		}

		elapsed := v.Now().Sub(start)
		if elapsed > *maxSim {
			return fmt.Errorf("mission incomplete after %v simulated", *maxSim)
		}

		for len(steps) > 0 && elapsed >= steps[0].at {
			cmd, err := steps[0].run(mode, v)
			if err != nil {
				return fmt.Errorf("script step at %v: %w", steps[0].at, err)
			}
			if cmd != nil {
				circleCmd = cmd
			}
			lg.Infof("script step at %v dispatched", steps[0].at)
			steps = steps[1:]
		}

		mode.Run()
		v.Step()

		if len(steps) == 0 && circleCmd != nil && mode.VerifyCommand(*circleCmd) {
			lg.Infof("circle command complete after %v simulated", elapsed)
			return nil
		}
	}
}

// params/params.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package params loads the vehicle parameter file. Missing parameters take
// their defaults; a missing file is created with the full default set so the
// operator has something to edit.
package params

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"copterguided/guided"
)

// File is the on-disk parameter file.
type File struct {
	Pilot   PilotParams   `yaml:"pilot"`
	Guided  GuidedParams  `yaml:"guided"`
	Vehicle VehicleParams `yaml:"vehicle"`
	Log     LogParams     `yaml:"log"`
}

// PilotParams bound pilot-commanded vertical motion.
type PilotParams struct {
	SpeedUpCMS   float32 `yaml:"speed_up_cms"`
	SpeedDownCMS float32 `yaml:"speed_down_cms"`
	AccelZCMSS   float32 `yaml:"accel_z_cmss"`
}

// GuidedParams configure guided-flight behavior.
type GuidedParams struct {
	// Options is the guided option bitmask: bit 0 allows arming from the
	// transmitter, bit 2 ignores pilot yaw input.
	Options            uint32  `yaml:"options"`
	TakeoffNavAltMinCM float32 `yaml:"takeoff_nav_alt_min_cm"`
}

// VehicleParams configure the airframe-level limits and rates.
type VehicleParams struct {
	LoopRateHz     float32 `yaml:"loop_rate_hz"`
	AngleMaxCD     float32 `yaml:"angle_max_cd"`
	ThrottleFiltHz float32 `yaml:"throttle_filt_hz"`
}

// LogParams configure the flight log.
type LogParams struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Defaults returns the full default parameter set.
func Defaults() *File {
	return &File{
		Pilot: PilotParams{
			SpeedUpCMS:   250,
			SpeedDownCMS: 150,
			AccelZCMSS:   250,
		},
		Guided: GuidedParams{
			Options:            0,
			TakeoffNavAltMinCM: 0,
		},
		Vehicle: VehicleParams{
			LoopRateHz:     400,
			AngleMaxCD:     4500,
			ThrottleFiltHz: 0,
		},
		Log: LogParams{
			Dir:   "./logs",
			Level: "info",
		},
	}
}

// Load reads the parameter file at path, filling unset parameters from the
// defaults. If the file does not exist it is created with the defaults.
func Load(path string) (*File, error) {
	f := Defaults()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parameter directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter file: %w", err)
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("failed to parse parameter file: %w", err)
		}
	} else {
		if err := Save(path, f); err != nil {
			return nil, fmt.Errorf("failed to save parameter file: %w", err)
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Save writes the parameter file to path.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write parameter file: %w", err)
	}
	return nil
}

// Validate rejects parameter combinations the control loops can't fly with.
func (f *File) Validate() error {
	switch {
	case f.Vehicle.LoopRateHz < 50 || f.Vehicle.LoopRateHz > 1000:
		return fmt.Errorf("loop_rate_hz %v outside [50, 1000]", f.Vehicle.LoopRateHz)
	case f.Vehicle.AngleMaxCD < 1000 || f.Vehicle.AngleMaxCD > 8000:
		return fmt.Errorf("angle_max_cd %v outside [1000, 8000]", f.Vehicle.AngleMaxCD)
	case f.Pilot.SpeedUpCMS <= 0:
		return fmt.Errorf("speed_up_cms %v must be positive", f.Pilot.SpeedUpCMS)
	case f.Pilot.SpeedDownCMS <= 0:
		return fmt.Errorf("speed_down_cms %v must be positive", f.Pilot.SpeedDownCMS)
	case f.Pilot.AccelZCMSS <= 0:
		return fmt.Errorf("accel_z_cmss %v must be positive", f.Pilot.AccelZCMSS)
	case f.Guided.TakeoffNavAltMinCM < 0:
		return fmt.Errorf("takeoff_nav_alt_min_cm %v must not be negative", f.Guided.TakeoffNavAltMinCM)
	case f.Vehicle.ThrottleFiltHz < 0:
		return fmt.Errorf("throttle_filt_hz %v must not be negative", f.Vehicle.ThrottleFiltHz)
	}
	return nil
}

// ModeParams maps the file onto the guided core's parameter block.
func (f *File) ModeParams() guided.Params {
	return guided.Params{
		LoopRate:         f.Vehicle.LoopRateHz,
		PilotSpeedUp:     f.Pilot.SpeedUpCMS,
		PilotSpeedDown:   f.Pilot.SpeedDownCMS,
		PilotAccelZ:      f.Pilot.AccelZCMSS,
		AngleMax:         f.Vehicle.AngleMaxCD,
		ThrottleFilt:     f.Vehicle.ThrottleFiltHz,
		TakeoffNavAltMin: f.Guided.TakeoffNavAltMinCM,
		Options:          guided.Options(f.Guided.Options),
	}
}

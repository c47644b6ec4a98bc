// guided/log.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"log/slog"
)

func (t AngleTarget) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("roll_cd", float64(t.RollCD)),
		slog.Float64("pitch_cd", float64(t.PitchCD)),
		slog.Float64("yaw_cd", float64(t.YawCD)),
		slog.Float64("yaw_rate_cds", float64(t.YawRateCDS)),
		slog.Float64("climb_rate_cms", float64(t.ClimbRate)),
		slog.Float64("thrust", float64(t.Thrust)),
		slog.Bool("use_yaw_rate", t.UseYawRate),
		slog.Bool("use_thrust", t.UseThrust))
}

func (l Limit) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("timeout", l.Timeout),
		slog.Float64("alt_min_cm", float64(l.AltMinCM)),
		slog.Float64("alt_max_cm", float64(l.AltMaxCM)),
		slog.Float64("horiz_max_cm", float64(l.HorizMaxCM)),
		slog.Time("start", l.StartTime))
}

func (loc Location) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("lat", int(loc.Lat)),
		slog.Int("lng", int(loc.Lng)),
		slog.Float64("alt_cm", float64(loc.AltCM)),
		slog.String("frame", loc.Frame.String()))
}

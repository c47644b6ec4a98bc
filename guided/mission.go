// guided/mission.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

// CommandID identifies a mission command type. Values match the standard
// command set used by the mission sequencer.
type CommandID int

// CommandLoiterTurns is the "circle this point N times" mission command.
const CommandLoiterTurns CommandID = 18

// Command is a mission command descriptor as handed to the core by the
// mission sequencer. Param1 packs the circle radius in meters (high byte)
// and the lap count (low byte).
type Command struct {
	ID     CommandID
	Index  int
	Loc    Location
	Param1 uint16
}

// RadiusM returns the circle radius in meters; zero keeps the tracker's
// configured radius.
func (c Command) RadiusM() float32 { return float32(c.Param1 >> 8) }

// Laps returns the number of full orbits required for completion.
func (c Command) Laps() int { return int(c.Param1 & 0xff) }

// locFromCommand resolves a command's location: missing lat/lon default to
// the current position and a missing altitude defaults to the current
// altitude expressed in the command's own frame, falling back to the
// current location's framing when that conversion isn't available.
func (m *Mode) locFromCommand(cmd Command) Location {
	loc := cmd.Loc

	if loc.Lat == 0 && loc.Lng == 0 {
		cur := m.inertial.Location()
		loc.Lat, loc.Lng = cur.Lat, cur.Lng
	}
	if loc.AltCM == 0 {
		if alt, ok := m.inertial.AltIn(loc.Frame); ok {
			loc.AltCM = alt
		} else {
			cur := m.inertial.Location()
			loc.AltCM = cur.AltCM
			loc.Frame = cur.Frame
		}
	}
	return loc
}

// doCircle stages a mission circle; the approach leg (if any) and the
// transition to orbiting are sequenced by verifyCircle.
func (m *Mode) doCircle(cmd Command) {
	m.circleMoveToEdgeStart(m.locFromCommand(cmd), cmd.RadiusM())
}

// StartCommand is called by the mission sequencer when a new command begins.
// The guided core accepts everything handed to it; commands it doesn't act
// on simply complete on the first verify.
func (m *Mode) StartCommand(cmd Command) bool {
	if m.circleNav != nil && cmd.ID == CommandLoiterTurns {
		m.doCircle(cmd)
	}
	return true
}

// VerifyCommand is polled by the mission sequencer while a command runs. It
// reports failure whenever the vehicle isn't actually in guided mode, so a
// stale mission can't trigger actions out from under another mode. An
// unrecognized command is reported complete, with a warning, so a malformed
// mission advances rather than stalls.
func (m *Mode) VerifyCommand(cmd Command) bool {
	if !m.active {
		return false
	}

	complete := false

	switch cmd.ID {
	case CommandLoiterTurns:
		if m.circleNav != nil {
			complete = m.verifyCircle(cmd)
		} else {
			complete = true
		}

	default:
		if m.notifier != nil {
			m.notifier.Warnf("Skipping invalid cmd #%d", cmd.ID)
		}
		m.lg.Warnf("unrecognized mission command %d, reporting complete", cmd.ID)
		complete = true
	}

	if complete && m.notifier != nil {
		m.notifier.MissionItemReached(cmd.Index)
	}

	return complete
}

// ExitMission is called once the mission completes.
func (m *Mode) ExitMission() {
	if m.notifier != nil {
		m.notifier.MissionComplete()
	}
}

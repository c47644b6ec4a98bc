// telem/telem.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package telem records the guided core's accepted targets and validation
// errors to a rotated on-disk stream of msgpack records, for post-flight
// analysis.
package telem

import (
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/natefinch/lumberjack.v2"

	"copterguided/guided"
)

// Kind discriminates record types in the stream.
type Kind int

const (
	KindTarget Kind = iota
	KindError
)

// Record is one entry in the telemetry stream.
type Record struct {
	Time    time.Time  `msgpack:"t"`
	Kind    Kind       `msgpack:"k"`
	Submode int        `msgpack:"s"`
	Pos     [3]float32 `msgpack:"p"`
	Vel     [3]float32 `msgpack:"v"`
	Err     string     `msgpack:"e,omitempty"`
}

// Recorder implements guided.TargetRecorder on a msgpack stream. Methods are
// safe for concurrent use and never fail: telemetry must not interfere with
// flight, so write errors are counted and otherwise dropped.
type Recorder struct {
	mu     sync.Mutex
	enc    *msgpack.Encoder
	closer io.Closer
	now    func() time.Time

	writeErrors int
}

// New returns a Recorder writing to a size-rotated file in dir.
func New(dir string) *Recorder {
	lj := &lumberjack.Logger{
		Filename:   dir + "/guided-targets.msgpack",
		MaxSize:    64, // MB
		MaxBackups: 3,
	}
	r := NewWriter(lj)
	r.closer = lj
	return r
}

// NewWriter returns a Recorder writing to w; the caller owns w's lifetime.
func NewWriter(w io.Writer) *Recorder {
	return &Recorder{
		enc: msgpack.NewEncoder(w),
		now: time.Now,
	}
}

func (r *Recorder) RecordTarget(sub guided.Submode, pos, vel [3]float32) {
	r.record(Record{Kind: KindTarget, Submode: int(sub), Pos: pos, Vel: vel})
}

func (r *Recorder) RecordError(err error) {
	r.record(Record{Kind: KindError, Err: err.Error()})
}

func (r *Recorder) record(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Time = r.now()
	if err := r.enc.Encode(rec); err != nil {
		r.writeErrors++
	}
}

// WriteErrors returns the number of records dropped due to write failures.
func (r *Recorder) WriteErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErrors
}

// Close flushes and closes the underlying file, if the Recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll decodes a telemetry stream back into records, stopping cleanly at
// EOF.
func ReadAll(rd io.Reader) ([]Record, error) {
	dec := msgpack.NewDecoder(rd)

	var recs []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return recs, nil
			}
			return recs, err
		}
		recs = append(recs, rec)
	}
}

package app

import (
	"errors"

	"rtk/kernel"
)

// reportEvery is how many samples the logger folds into one report line.
const reportEvery = 8

// sample is the sampler timer callback. It runs in the tick interrupt: it
// reads the sensor into a pool block and queues it for the logger without
// waiting. A reading is dropped when either the pool or the queue is full.
func (s *System) sample(any) {
	now := s.k.Now()
	blk, err := s.pool.Alloc(kernel.NoWait)
	if err != nil {
		s.stats.dropped.Add(1)
		return
	}
	s.seq++
	*blk.Ptr() = Sample{Seq: s.seq, At: now, MilliVolts: readSensor(now)}
	if err := s.samples.Put(blk, kernel.NoWait); err != nil {
		s.pool.Free(blk)
		s.stats.dropped.Add(1)
		return
	}
	s.stats.samples.Add(1)
	s.events.Set(evSample)
}

// readSensor models a 1.0 V to 2.0 V triangle wave with a two second
// period at 1 kHz.
func readSensor(now kernel.Ticks) int32 {
	v := int32(now % 2000)
	if v > 1000 {
		v = 2000 - v
	}
	return 1000 + v
}

// logSamples drains the sample queue and logs min/avg/max per report.
func (s *System) logSamples(any) {
	var n, sum, lo, hi int32
	for {
		blk, err := s.samples.Get(kernel.WaitForever)
		if err != nil {
			s.logf("logger: %v", err)
			return
		}
		v := *blk.Ptr()
		if err := s.pool.Free(blk); err != nil {
			s.logf("logger: free sample %d: %v", v.Seq, err)
		}

		if n == 0 || v.MilliVolts < lo {
			lo = v.MilliVolts
		}
		if n == 0 || v.MilliVolts > hi {
			hi = v.MilliVolts
		}
		sum += v.MilliVolts
		n++
		if n == reportEvery {
			s.stats.reports.Add(1)
			s.logf("sensor: #%d at %d: min %d avg %d max %d mV", v.Seq, v.At, lo, sum/n, hi)
			n, sum = 0, 0
		}
	}
}

// supervise expects a sample at least every three periods and reports a
// stall otherwise.
func (s *System) supervise(any) {
	limit := 3 * s.cfg.SamplePeriod
	stalled := false
	for {
		_, err := s.events.Wait(evSample, kernel.WaitAny, limit)
		switch {
		case err == nil:
			if stalled {
				s.logf("supervisor: sampler recovered at %d", s.k.Now())
				stalled = false
			}
		case errors.Is(err, kernel.ErrTimeout):
			s.stats.stalls.Add(1)
			if !stalled {
				s.logf("supervisor: no sample for %d ticks", limit)
				stalled = true
			}
		default:
			s.logf("supervisor: %v", err)
			return
		}
	}
}

// blink toggles the LED every BlinkPeriod ticks, anchored to absolute
// deadlines so the phase does not drift.
func (s *System) blink(any) {
	led := s.h.LED()
	next := s.k.Now()
	on := false
	for {
		next += s.cfg.BlinkPeriod
		if err := s.k.DelayUntil(next); err != nil {
			s.logf("blinker: %v", err)
			return
		}
		on = !on
		if led != nil {
			if on {
				led.High()
			} else {
				led.Low()
			}
		}
		s.stats.blinks.Add(1)
	}
}

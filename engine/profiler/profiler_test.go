package profiler

import (
	"errors"
	"testing"
	"time"
)

func TestRecordDispatchAccumulates(t *testing.T) {
	p := NewProfiler()
	p.RecordDispatch(10, 2*time.Millisecond, nil)
	p.RecordDispatch(4, 5*time.Millisecond, errors.New("lost device"))
	p.RecordDispatch(6, time.Millisecond, nil)

	s := p.Stats()
	if s.Dispatches != 3 || s.Failures != 1 || s.Elements != 20 {
		t.Errorf("Stats = %+v", s)
	}
	if s.LastDispatch != time.Millisecond || s.MaxDispatch != 5*time.Millisecond {
		t.Errorf("LastDispatch = %v, MaxDispatch = %v", s.LastDispatch, s.MaxDispatch)
	}
}

func TestTickLogsOnlyWhenEnabled(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(time.Nanosecond))
	time.Sleep(time.Millisecond)
	if p.Tick() {
		t.Error("Tick logged with logging disabled")
	}

	p.SetLogging(true)
	time.Sleep(time.Millisecond)
	if !p.Tick() {
		t.Error("Tick did not log after the interval elapsed")
	}
	if p.Stats().Ticks != 2 {
		t.Errorf("Ticks = %d, want 2", p.Stats().Ticks)
	}
}

func TestTickWaitsForInterval(t *testing.T) {
	p := NewProfiler(WithLogging(true), WithUpdateInterval(time.Hour))
	for range 5 {
		if p.Tick() {
			t.Fatal("Tick logged before the interval elapsed")
		}
	}
}

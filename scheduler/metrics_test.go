package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPSquareQuantile_uniform(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	p50 := newPSquareQuantile(0.5)
	p99 := newPSquareQuantile(0.99)
	for range 10000 {
		x := r.Float64() * 1000
		p50.update(x)
		p99.update(x)
	}
	assert.InDelta(t, 500, p50.quantile(), 25)
	assert.InDelta(t, 990, p99.quantile(), 20)
}

func TestPSquareQuantile_fewObservations(t *testing.T) {
	ps := newPSquareQuantile(0.5)
	assert.Equal(t, 0.0, ps.quantile())
	ps.update(3)
	ps.update(1)
	ps.update(2)
	assert.Equal(t, 2.0, ps.quantile())
}

func TestPSquareQuantile_clampsP(t *testing.T) {
	assert.Equal(t, 0.0, newPSquareQuantile(-1).p)
	assert.Equal(t, 1.0, newPSquareQuantile(2).p)
}

func TestLatencyRecorder(t *testing.T) {
	l := newLatencyRecorder()
	assert.Equal(t, LatencyMetrics{}, l.snapshot())
	for _, ms := range []int64{4, 1, 3, 2, 10} {
		l.record(ms)
	}
	s := l.snapshot()
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 10*time.Millisecond, s.Max)
	assert.Equal(t, 4*time.Millisecond, s.Mean)
	assert.Equal(t, 3*time.Millisecond, s.P50)
}

func TestMetrics_depthsMovingAverage(t *testing.T) {
	m := newMetrics()
	m.depths(10, 0)
	assert.Equal(t, 10.0, m.counters.Queue.TaskAvg)
	m.depths(0, 5)
	q := m.snapshot().Queue
	assert.InDelta(t, 9.0, q.TaskAvg, 1e-9)
	assert.InDelta(t, 0.5, q.TimerAvg, 1e-9)
	assert.Equal(t, 10, q.TaskMax)
	assert.Equal(t, 5, q.TimerMax)
	assert.Equal(t, 0, q.TaskCurrent)
}

func TestMetrics_nilSafe(t *testing.T) {
	var m *metrics
	m.scheduled()
	m.started(1)
	m.ran(1, true)
	m.canceled()
	m.errored()
	m.depths(1, 1)
	assert.Nil(t, m.snapshot())
}

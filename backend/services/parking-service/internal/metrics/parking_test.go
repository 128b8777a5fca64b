package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestParkingCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewParking(reg)

	p.Arrived()
	p.Arrived()
	p.Exited()
	p.ExitRejected()
	p.Settled(20)
	p.Settled(0)
	p.Evaluated(true)
	p.Conflict("arrive")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.arrivals))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.exits))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.openSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.exitsRejected))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.settlements))
	assert.Equal(t, 20.0, testutil.ToFloat64(p.settledAmount))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.evaluations.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.conflicts.WithLabelValues("arrive")))
}

func TestNilParkingIsNoop(t *testing.T) {
	var p *Parking
	assert.NotPanics(t, func() {
		p.Arrived()
		p.Exited()
		p.ExitRejected()
		p.Settled(5)
		p.Evaluated(false)
		p.Conflict("settle")
	})
}

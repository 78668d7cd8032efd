package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_GetCollectorIsSingleton(t *testing.T) {
	assert.Same(t, GetCollector(), GetCollector())
}

func TestCollector_ObserveTracksDeltasNotAbsolutes(t *testing.T) {
	c := GetCollector()

	c.Observe(10, 8, 5, 1.5, 2.0, 3, 1.0)
	before := testutil.ToFloat64(c.RequestsTotal)

	c.Observe(15, 12, 9, 1.5, 2.0, 4, 2.0)
	after := testutil.ToFloat64(c.RequestsTotal)

	assert.Equal(t, float64(5), after-before)
}

func TestCollector_HandlerIsNotNil(t *testing.T) {
	assert.NotNil(t, Handler())
}

package coremetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryRegistersUnderNamespaceAndSubsystem(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewFactory("corelibtest", "widgets", reg)

	c := f.Counter("built_total", "Total widgets built.")
	c.Inc()
	c.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "corelibtest_widgets_built_total", families[0].GetName())
	assert.Equal(t, float64(2), families[0].GetMetric()[0].GetCounter().GetValue())
}

func TestGaugeVecCurryableByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewFactory("corelibtest", "topics", reg)

	gv := f.GaugeVec("lag", "Consumer lag.", "topic", "group")
	gv.MustCurryWith(prometheus.Labels{"topic": "orders"}).WithLabelValues("g1").Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, float64(3), families[0].GetMetric()[0].GetGauge().GetValue())
}

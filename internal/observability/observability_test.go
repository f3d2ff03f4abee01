package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetricsForTesting()

	m.RecordResolution("x_forwarded_for")
	m.RecordResolution("x_forwarded_for")
	m.RecordExtractionSuccess("x_forwarded_for")
	m.RecordExtractionFailure("x_real_ip")
	m.RecordSecurityEvent("untrusted_proxy")
	m.RecordRequest("GET", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IPResolutions.WithLabelValues("x_forwarded_for")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientIPExtractions.WithLabelValues("x_forwarded_for", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientIPExtractions.WithLabelValues("x_real_ip", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientIPSecurity.WithLabelValues("untrusted_proxy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "200")))
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()

	for _, c := range m.collectors() {
		require.NoError(t, reg.Register(c))
	}
}

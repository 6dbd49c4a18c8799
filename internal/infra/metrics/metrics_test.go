//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	MustRegister()
	MustRegister() // second call is a no-op

	before := testutil.ToFloat64(paymentsByStatus.WithLabelValues("captured"))
	IncPayment(" Captured ")
	assert.Equal(t, before+1, testutil.ToFloat64(paymentsByStatus.WithLabelValues("captured")))

	AddPaymentRevenue("INR", 1998)
	assert.GreaterOrEqual(t, testutil.ToFloat64(capturedAmount.WithLabelValues("inr")), 19.98)

	ObserveVerify("ok", "signature", 10*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(paymentVerifyRequests.WithLabelValues("ok", "")), float64(1))

	SetDocumentQueueDepth(3, 1)
	assert.Equal(t, float64(3), testutil.ToFloat64(documentQueueDepth.WithLabelValues("pending")))
	assert.Equal(t, float64(1), testutil.ToFloat64(documentQueueDepth.WithLabelValues("processing")))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	SetBuildInfo("1.2.3", "abc")
	ObserveDBPool(nil)

	n, err := testutil.GatherAndCount(reg, "amc_payments_build_info")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

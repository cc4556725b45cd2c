package metrics_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Nzyazin/schoolwallet/internal/core/metrics"
	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	rec.ObserveOperation("topup", "success")
	rec.ObserveOperation("topup", "success")
	rec.ObserveOperation("purchase", "insufficient_funds")
	rec.NotifyLowBalance(context.Background(), models.Wallet{})

	series, err := testutil.GatherAndCount(reg, "school_wallet_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)

	expected := `
# HELP school_wallet_low_balance_total Debits that left a wallet under its low balance threshold.
# TYPE school_wallet_low_balance_total counter
school_wallet_low_balance_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "school_wallet_low_balance_total"))
}

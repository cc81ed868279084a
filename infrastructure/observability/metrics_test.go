package observability

import (
	"context"
	"errors"
	"testing"

	"itcwallet/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsProvider_NilIsNoop(t *testing.T) {
	var mp *MetricsProvider

	assert.NotPanics(t, func() {
		mp.RecordLedgerEntry("refund")
		mp.RecordCashoutTransition("paid")
		mp.RecordWebhookEvent("payout.paid", "applied")
		mp.RecordNATSMessagePublished("balance_change")
		mp.RecordNATSMessageReceived("reward_requested")
		err := errors.New("boom")
		mp.MeasureProcessorCall("CreateTransfer")(&err)
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_Disabled(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = false

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	assert.False(t, mp.isEnabled())

	assert.NotPanics(t, func() {
		mp.RecordLedgerEntry("purchase_reward")
	})
}

func TestMetricsProvider_ConsoleExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "console"
	cfg.OTelExportIntervalMS = 60000

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	assert.True(t, mp.isEnabled())
	assert.NotPanics(t, func() {
		mp.RecordLedgerEntry("purchase_reward")
		mp.RecordCashoutTransition("reserved")
		mp.RecordWebhookEvent("payout.failed", "applied")
		var err error
		mp.MeasureProcessorCall("CreatePayout")(&err)
	})
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "prometheus"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.Error(t, err)
}

package processor

import (
	"testing"
	"time"

	"itcwallet/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestSignatureVerifier(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1","type":"payout.paid"}`)
	verifier := NewSignatureVerifier(testSecret, 5*time.Minute)

	tests := []struct {
		name    string
		payload []byte
		header  string
		wantErr bool
	}{
		{name: "valid", payload: payload, header: SignPayload(testSecret, payload, now)},
		{name: "valid within tolerance", payload: payload, header: SignPayload(testSecret, payload, now.Add(-4*time.Minute))},
		{name: "one of several signatures matches", payload: payload, header: SignPayload(testSecret, payload, now) + ",v1=deadbeef"},
		{name: "wrong secret", payload: payload, header: SignPayload("other", payload, now), wantErr: true},
		{name: "tampered payload", payload: []byte(`{"id":"evt_2"}`), header: SignPayload(testSecret, payload, now), wantErr: true},
		{name: "too old", payload: payload, header: SignPayload(testSecret, payload, now.Add(-6*time.Minute)), wantErr: true},
		{name: "from the future", payload: payload, header: SignPayload(testSecret, payload, now.Add(6*time.Minute)), wantErr: true},
		{name: "empty header", payload: payload, header: "", wantErr: true},
		{name: "missing signature", payload: payload, header: "t=1772366400", wantErr: true},
		{name: "bad timestamp", payload: payload, header: "t=abc,v1=00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := verifier.Verify(tt.payload, tt.header, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, entities.ErrWebhookSignatureInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSignatureVerifier_NoSecret(t *testing.T) {
	t.Parallel()

	now := time.Now()
	payload := []byte(`{}`)
	err := NewSignatureVerifier("", time.Minute).Verify(payload, SignPayload("", payload, now), now)
	assert.ErrorIs(t, err, entities.ErrWebhookSignatureInvalid)
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	t.Run("payout failed", func(t *testing.T) {
		payload := []byte(`{"id":"evt_1","type":"payout.failed","created":1772366400,"data":{"object":{
			"id":"po_1","failure_code":"account_closed","failure_message":"closed",
			"metadata":{"cashout_request_id":"6f1c3b1e-8a43-4c43-9a3e-2f5a9d0c1b7e"}}}}`)

		event, err := DecodeEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, entities.ProcessorEventPayoutFailed, event.Type)
		assert.Equal(t, "po_1", event.PayoutID)
		assert.Equal(t, "account_closed", event.FailureCode)
		require.NotNil(t, event.CashoutRequestID)
		assert.Equal(t, "6f1c3b1e-8a43-4c43-9a3e-2f5a9d0c1b7e", event.CashoutRequestID.String())
	})

	t.Run("payout paid with arrival date", func(t *testing.T) {
		payload := []byte(`{"id":"evt_2","type":"payout.paid","data":{"object":{"id":"po_2","arrival_date":1772452800,"metadata":{}}}}`)

		event, err := DecodeEvent(payload)
		require.NoError(t, err)
		require.NotNil(t, event.ArrivalDate)
		assert.Equal(t, int64(1772452800), event.ArrivalDate.Unix())
		assert.Nil(t, event.CashoutRequestID)
	})

	t.Run("account updated", func(t *testing.T) {
		payload := []byte(`{"id":"evt_3","type":"account.updated","data":{"object":{
			"id":"acct_1","details_submitted":true,"payouts_enabled":true,"requirements_due":["tax_id"]}}}`)

		event, err := DecodeEvent(payload)
		require.NoError(t, err)
		require.NotNil(t, event.Account)
		assert.Equal(t, "acct_1", event.Account.ID)
		assert.True(t, event.Account.PayoutsEnabled)
		assert.Equal(t, []string{"tax_id"}, event.Account.RequirementsDue)
	})

	t.Run("unknown type", func(t *testing.T) {
		event, err := DecodeEvent([]byte(`{"id":"evt_4","type":"charge.refunded","data":{"object":{}}}`))
		require.NoError(t, err)
		assert.Equal(t, entities.ProcessorEventType("charge.refunded"), event.Type)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`not json`))
		assert.ErrorIs(t, err, entities.ErrInvalidEntry)

		_, err = DecodeEvent([]byte(`{"type":"payout.paid"}`))
		assert.ErrorIs(t, err, entities.ErrInvalidEntry)
	})
}

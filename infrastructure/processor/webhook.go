package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"itcwallet/domain/entities"
	"itcwallet/domain/interfaces"

	"github.com/google/uuid"
)

// SignatureHeader carries the webhook signature
const SignatureHeader = "Processor-Signature"

// SignatureVerifier checks webhook signatures of the form
// t=<unix seconds>,v1=<hex HMAC-SHA256(secret, "<t>.<payload>")>
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
}

var _ interfaces.WebhookVerifier = (*SignatureVerifier)(nil)

// NewSignatureVerifier creates a verifier for the shared webhook secret
func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret), tolerance: tolerance}
}

// Verify returns entities.ErrWebhookSignatureInvalid unless one v1 signature matches
// and the timestamp is within tolerance of now
func (v *SignatureVerifier) Verify(payload []byte, signatureHeader string, now time.Time) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: no webhook secret configured", entities.ErrWebhookSignatureInvalid)
	}

	var timestamp string
	var signatures [][]byte
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if sig, err := hex.DecodeString(value); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed signature header", entities.ErrWebhookSignatureInvalid)
	}

	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", entities.ErrWebhookSignatureInvalid)
	}
	age := now.Sub(time.Unix(seconds, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", entities.ErrWebhookSignatureInvalid)
	}

	expected := v.sign(timestamp, payload)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", entities.ErrWebhookSignatureInvalid)
}

func (v *SignatureVerifier) sign(timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload builds a signature header for payload, as the processor does
func SignPayload(secret string, payload []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	sig := (&SignatureVerifier{secret: []byte(secret)}).sign(timestamp, payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(sig)
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type payoutObject struct {
	ID             string            `json:"id"`
	ArrivalDate    int64             `json:"arrival_date"`
	FailureCode    string            `json:"failure_code"`
	FailureMessage string            `json:"failure_message"`
	Metadata       map[string]string `json:"metadata"`
}

// DecodeEvent parses a verified webhook payload. Unknown event types decode
// without a payload so they can be acknowledged and recorded as ignored.
func DecodeEvent(payload []byte) (*entities.ProcessorEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", entities.ErrInvalidEntry, err)
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, fmt.Errorf("%w: webhook payload missing id or type", entities.ErrInvalidEntry)
	}

	event := &entities.ProcessorEvent{
		ID:   envelope.ID,
		Type: entities.ProcessorEventType(envelope.Type),
	}
	if envelope.Created > 0 {
		event.CreatedAt = time.Unix(envelope.Created, 0).UTC()
	}

	switch event.Type {
	case entities.ProcessorEventPayoutPaid, entities.ProcessorEventPayoutFailed:
		var payout payoutObject
		if err := json.Unmarshal(envelope.Data.Object, &payout); err != nil {
			return nil, fmt.Errorf("%w: malformed payout object: %v", entities.ErrInvalidEntry, err)
		}
		event.PayoutID = payout.ID
		event.FailureCode = payout.FailureCode
		event.FailureMessage = payout.FailureMessage
		if payout.ArrivalDate > 0 {
			arrival := time.Unix(payout.ArrivalDate, 0).UTC()
			event.ArrivalDate = &arrival
		}
		if raw := payout.Metadata["cashout_request_id"]; raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				event.CashoutRequestID = &id
			}
		}

	case entities.ProcessorEventAccountUpdated:
		var account accountResponse
		if err := json.Unmarshal(envelope.Data.Object, &account); err != nil {
			return nil, fmt.Errorf("%w: malformed account object: %v", entities.ErrInvalidEntry, err)
		}
		event.Account = account.toEntity()
	}

	return event, nil
}

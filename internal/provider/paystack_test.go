package provider

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paystackSecret = "sk_test_paystack"

func signPaystack(body []byte) string {
	mac := hmac.New(sha512.New, []byte(paystackSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func chargeBody(userID, tokens string) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"ref_001","amount":500000,"currency":"ghs","status":"success","metadata":{"user_id":%q,"tokens_to_add":%s}}}`, userID, tokens))
}

func TestPaystackVerifyWebhook(t *testing.T) {
	p := NewPaystackProvider(paystackSecret)
	body := chargeBody(uuid.NewString(), "10")

	event, err := p.VerifyWebhook(body, signPaystack(body))
	require.NoError(t, err)
	assert.Equal(t, PaystackEventChargeSuccess, event.Event)

	_, err = p.VerifyWebhook(body, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-3] = '9'
	_, err = p.VerifyWebhook(tampered, signPaystack(body))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewPaystackProvider("").VerifyWebhook(body, signPaystack(body))
	assert.Error(t, err)
}

func TestParseChargeSuccess(t *testing.T) {
	userID := uuid.New()
	p := NewPaystackProvider(paystackSecret)

	tests := []struct {
		name       string
		body       []byte
		wantTokens int64
		wantErr    bool
	}{
		{"numeric tokens", chargeBody(userID.String(), "10"), 10, false},
		{"string tokens", chargeBody(userID.String(), `"25"`), 25, false},
		{"zero tokens", chargeBody(userID.String(), "0"), 0, true},
		{"negative tokens", chargeBody(userID.String(), "-4"), 0, true},
		{"fractional tokens", chargeBody(userID.String(), "2.5"), 0, true},
		{"missing tokens", chargeBody(userID.String(), `""`), 0, true},
		{"bad user id", chargeBody("someone", "10"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := p.VerifyWebhook(tt.body, signPaystack(tt.body))
			require.NoError(t, err)

			charge, err := ParseChargeSuccess(event)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsKind(err, domain.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ref_001", charge.Reference)
			assert.Equal(t, userID, charge.ProfileID)
			assert.Equal(t, tt.wantTokens, charge.Tokens)
			assert.Equal(t, int64(500000), charge.AmountMinor)
			assert.Equal(t, "GHS", charge.Currency)
		})
	}
}

func TestParseChargeSuccess_WrongEvent(t *testing.T) {
	_, err := ParseChargeSuccess(&PaystackEvent{Event: "transfer.success"})
	assert.Error(t, err)
}

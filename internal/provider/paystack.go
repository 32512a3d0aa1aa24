package provider

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
)

// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body.
const PaystackSignatureHeader = "X-Paystack-Signature"

// PaystackEventChargeSuccess is the only event that credits tokens.
const PaystackEventChargeSuccess = "charge.success"

// ErrInvalidSignature is returned when a webhook body fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// PaystackProvider verifies and decodes Paystack webhooks.
type PaystackProvider struct {
	secretKey string
}

// NewPaystackProvider creates a provider keyed by the account secret.
func NewPaystackProvider(secretKey string) *PaystackProvider {
	return &PaystackProvider{secretKey: secretKey}
}

// PaystackEvent is a parsed webhook envelope.
type PaystackEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type paystackCharge struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Metadata  struct {
		UserID      string   `json:"user_id"`
		TokensToAdd flexible `json:"tokens_to_add"`
	} `json:"metadata"`
}

// flexible accepts a JSON number or a numeric string, since checkout
// metadata is user-assembled.
type flexible string

func (f *flexible) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexible(strings.TrimSpace(s))
		return nil
	}
	*f = flexible(b)
	return nil
}

// VerifyWebhook checks signature against the raw body and decodes it.
func (p *PaystackProvider) VerifyWebhook(payload []byte, signature string) (*PaystackEvent, error) {
	if p.secretKey == "" {
		return nil, fmt.Errorf("paystack secret key not configured")
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return nil, ErrInvalidSignature
	}

	var event PaystackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

// ParseChargeSuccess extracts the token purchase from a charge.success
// event. Missing metadata or a non-positive token count is a validation error.
func ParseChargeSuccess(event *PaystackEvent) (*domain.ChargeSucceeded, error) {
	if event.Event != PaystackEventChargeSuccess {
		return nil, fmt.Errorf("unexpected event %q", event.Event)
	}
	var charge paystackCharge
	if err := json.Unmarshal(event.Data, &charge); err != nil {
		return nil, domain.ErrValidation("malformed charge data")
	}
	if charge.Reference == "" {
		return nil, domain.ErrValidation("charge reference is required")
	}
	userID, err := uuid.Parse(charge.Metadata.UserID)
	if err != nil {
		return nil, domain.ErrValidation("metadata.user_id must be a user id")
	}
	tokens, err := strconv.ParseInt(string(charge.Metadata.TokensToAdd), 10, 64)
	if err != nil || tokens <= 0 {
		return nil, domain.ErrValidation("metadata.tokens_to_add must be a positive integer")
	}

	return &domain.ChargeSucceeded{
		Reference:   charge.Reference,
		ProfileID:   userID,
		Tokens:      tokens,
		AmountMinor: charge.Amount,
		Currency:    strings.ToUpper(charge.Currency),
		Raw:         event.Data,
	}, nil
}

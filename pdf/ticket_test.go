package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concert-tix/models"
)

func paidOrder() models.Order {
	return models.Order{
		ID:          "ord123",
		UserID:      "usr456",
		Status:      models.OrderPaid,
		TotalAmount: decimal.NewFromInt(250),
		Created:     time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{TicketTypeID: "tt1", TicketTypeName: "VIP", Quantity: 2, PricePerUnit: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(200)},
			{TicketTypeID: "tt2", TicketTypeName: "Regular", Quantity: 1, PricePerUnit: decimal.NewFromInt(50), Subtotal: decimal.NewFromInt(50)},
		},
	}
}

func TestRenderPaidOrder(t *testing.T) {
	renderer := NewTicketRenderer("test-signing-key")

	out, err := renderer.Render(TicketData{
		Order:         paidOrder(),
		CustomerName:  "Dara Vong",
		CustomerEmail: "dara@example.com",
		ConcertTitle:  "Night of Strings",
		Venue:         "Grand Hall",
		ConcertDate:   time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderRejectsNonPaidOrder(t *testing.T) {
	renderer := NewTicketRenderer("test-signing-key")

	for _, s := range []string{models.OrderPending, models.OrderPaymentSubmitted, models.OrderCancelled} {
		order := paidOrder()
		order.Status = s

		_, err := renderer.Render(TicketData{Order: order})
		assert.Error(t, err, "status=%s", s)
	}
}

func TestSignedPayloadRoundTrip(t *testing.T) {
	renderer := NewTicketRenderer("test-signing-key")

	claims := TicketClaims{
		OrderID:  "ord123",
		UserID:   "usr456",
		Total:    "250",
		IssuedAt: time.Now().Unix(),
	}

	payload, err := renderer.SignedPayload(claims)
	require.NoError(t, err)

	got, ok := renderer.Verify(payload)
	require.True(t, ok)
	assert.Equal(t, claims, *got)
}

func TestVerifyRejectsTampering(t *testing.T) {
	renderer := NewTicketRenderer("test-signing-key")

	payload, err := renderer.SignedPayload(TicketClaims{OrderID: "ord123", UserID: "usr456"})
	require.NoError(t, err)

	// flip a character in the body
	tampered := "X" + payload[1:]
	_, ok := renderer.Verify(tampered)
	assert.False(t, ok)

	// garbage without a signature separator
	_, ok = renderer.Verify("not-a-payload")
	assert.False(t, ok)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := NewTicketRenderer("key-one")
	verifier := NewTicketRenderer("key-two")

	payload, err := signer.SignedPayload(TicketClaims{OrderID: "ord123"})
	require.NoError(t, err)

	_, ok := verifier.Verify(payload)
	assert.False(t, ok)
}

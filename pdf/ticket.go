package pdf

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"concert-tix/models"
	"concert-tix/monitoring"
)

// TicketRenderer turns a paid order into a printable A4 ticket. The order's
// items are a stable snapshot once the order is paid, so the renderer takes
// no locks and hits no storage.
type TicketRenderer struct {
	signingKey []byte
}

func NewTicketRenderer(signingKey string) *TicketRenderer {
	return &TicketRenderer{signingKey: []byte(signingKey)}
}

// TicketData is everything the renderer needs, assembled by the caller.
type TicketData struct {
	Order         models.Order
	CustomerName  string
	CustomerEmail string
	ConcertTitle  string
	Venue         string
	ConcertDate   time.Time
}

// TicketClaims is the QR payload scanned at the venue.
type TicketClaims struct {
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Total    string `json:"total"`
	IssuedAt int64  `json:"issued_at"`
}

// SignedPayload serializes claims and appends an HMAC-SHA256 signature.
func (r *TicketRenderer) SignedPayload(claims TicketClaims) (string, error) {
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return string(body) + "." + r.hmac256(body), nil
}

// Verify splits a scanned payload and checks its signature.
func (r *TicketRenderer) Verify(payload string) (*TicketClaims, bool) {
	idx := strings.LastIndex(payload, ".")
	if idx < 0 {
		return nil, false
	}

	body, sig := payload[:idx], payload[idx+1:]
	if !hmac.Equal([]byte(r.hmac256([]byte(body))), []byte(sig)) {
		return nil, false
	}

	var claims TicketClaims
	if err := json.Unmarshal([]byte(body), &claims); err != nil {
		return nil, false
	}
	return &claims, true
}

// Render produces the PDF bytes for a paid order.
func (r *TicketRenderer) Render(data TicketData) ([]byte, error) {
	if data.Order.Status != models.OrderPaid {
		return nil, fmt.Errorf("pdf: order %s is %s, only paid orders render tickets",
			data.Order.ID, data.Order.Status)
	}

	start := time.Now()

	payload, err := r.SignedPayload(TicketClaims{
		OrderID:  data.Order.ID,
		UserID:   data.Order.UserID,
		Total:    data.Order.TotalAmount.String(),
		IssuedAt: start.Unix(),
	})
	if err != nil {
		return nil, err
	}

	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	// Header
	doc.SetFont("Helvetica", "B", 24)
	doc.SetTextColor(59, 130, 246)
	doc.CellFormat(0, 12, "ConcertTix", "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 14)
	doc.SetTextColor(107, 114, 128)
	doc.CellFormat(0, 8, "Concert Ticket", "", 1, "C", false, 0, "")
	doc.Ln(6)

	// Order information
	doc.SetTextColor(0, 0, 0)
	writeRow := func(label, value string) {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}

	writeRow("Order Number:", "#"+data.Order.ID)
	writeRow("Customer:", data.CustomerName)
	writeRow("Email:", data.CustomerEmail)
	writeRow("Concert:", data.ConcertTitle)
	writeRow("Venue:", data.Venue)
	if !data.ConcertDate.IsZero() {
		writeRow("Date:", data.ConcertDate.Format("January 2, 2006 at 3:04 PM"))
	}
	writeRow("Order Date:", data.Order.Created.Format("January 2, 2006 at 3:04 PM"))
	writeRow("Payment Status:", "CONFIRMED")
	doc.Ln(6)

	// Line items
	doc.SetFont("Helvetica", "B", 11)
	doc.SetFillColor(243, 244, 246)
	doc.CellFormat(80, 8, "Ticket", "1", 0, "L", true, 0, "")
	doc.CellFormat(30, 8, "Quantity", "1", 0, "C", true, 0, "")
	doc.CellFormat(40, 8, "Price", "1", 0, "R", true, 0, "")
	doc.CellFormat(40, 8, "Subtotal", "1", 1, "R", true, 0, "")

	doc.SetFont("Helvetica", "", 11)
	for _, item := range data.Order.Items {
		name := item.TicketTypeName
		if name == "" {
			name = item.TicketTypeID
		}
		doc.CellFormat(80, 8, name, "1", 0, "L", false, 0, "")
		doc.CellFormat(30, 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		doc.CellFormat(40, 8, item.PricePerUnit.StringFixed(2), "1", 0, "R", false, 0, "")
		doc.CellFormat(40, 8, item.Subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(150, 8, "Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(40, 8, data.Order.TotalAmount.StringFixed(2), "1", 1, "R", false, 0, "")
	doc.Ln(8)

	// QR code for venue check-in
	doc.RegisterImageOptionsReader("ticket-qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
	doc.ImageOptions("ticket-qr", 80, doc.GetY(), 50, 50, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	doc.SetY(doc.GetY() + 52)
	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(107, 114, 128)
	doc.CellFormat(0, 6, "Present this QR code at the venue entrance", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}

	monitoring.ObserveTicketRender(time.Since(start))
	return buf.Bytes(), nil
}

func (r *TicketRenderer) hmac256(body []byte) string {
	mac := hmac.New(sha256.New, r.signingKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmbcrafts/storefront/internal/pricing"
)

// ErrMissingFields means the order payload lacked items, a total, or a
// customer email.
var ErrMissingFields = errors.New("missing required order information")

// OrderItem is one purchased line as the notification endpoint
// receives it.
type OrderItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order is the notification payload: the cart snapshot plus payer
// identity and the external transaction id. Never persisted, only
// relayed.
type Order struct {
	Items            []OrderItem `json:"items"`
	Subtotal         string      `json:"subtotal"`
	Shipping         string      `json:"shipping"`
	Total            string      `json:"total"`
	CustomerEmail    string      `json:"customerEmail"`
	CustomerName     string      `json:"customerName"`
	TransactionID    string      `json:"transactionId"`
	MailingListOptIn bool        `json:"mailingListOptIn"`
}

// Validate checks the fields the shop owner cannot do without.
func (o *Order) Validate() error {
	if len(o.Items) == 0 || o.Total == "" || o.CustomerEmail == "" {
		return ErrMissingFields
	}
	return nil
}

// ItemSummary renders the order lines as one readable string:
// "Birthday Wishes x2 - $17.98 | Heartfelt Thanks x1 - $6.99".
func (o *Order) ItemSummary() string {
	parts := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		parts = append(parts, fmt.Sprintf("%s x%d - $%s", item.Name, item.Quantity, pricing.FormatAmount(lineTotal)))
	}
	return strings.Join(parts, " | ")
}

// Notifier forwards confirmed orders to the shop owner through the
// form-relay endpoint. Delivery is best effort; the buyer's success
// path never waits on it.
type Notifier struct {
	formURL string
	client  *http.Client
	now     func() time.Time
}

func NewNotifier(formURL string) *Notifier {
	return &Notifier{
		formURL: formURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// Send validates the order and posts it as a form submission.
func (n *Notifier) Send(ctx context.Context, order *Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	form := url.Values{
		"form-name":      {"order-notification"},
		"transaction-id": {orDefault(order.TransactionID, "N/A")},
		"customer-email": {order.CustomerEmail},
		"customer-name":  {orDefault(order.CustomerName, "Not provided")},
		"order-items":    {order.ItemSummary()},
		"subtotal":       {orDefault(order.Subtotal, order.Total)},
		"shipping":       {orDefault(order.Shipping, "0.00")},
		"total":          {order.Total},
		"mailing-list":   {yesNo(order.MailingListOptIn)},
		"order-date":     {n.now().Format(time.RFC1123)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.formURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send order notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("order notification relay returned status %d", resp.StatusCode)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

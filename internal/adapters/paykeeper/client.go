package paykeeper

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// Client talks to a PayKeeper-compatible gateway over basic auth. Every
// method is a single attempt; retry policy belongs to the caller.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
	logger  observability.Logger
}

func NewClient(server, user, password string, logger observability.Logger) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	return &Client{
		baseURL: strings.TrimRight(server, "/"),
		auth:    "Basic " + creds,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Ping verifies connectivity and credentials at startup.
func (c *Client) Ping(ctx context.Context) error {
	var info struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/info/", &info); err != nil {
		return err
	}
	if info.Status != "ok" {
		return errors.Wrap(domain.ErrInvalidRequest, "unexpected gateway info response")
	}
	return nil
}

// CreateInvoice obtains a security token, creates an invoice preview and
// returns the payable URL.
func (c *Client) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (domain.Invoice, error) {
	observability.GatewayRequests.WithLabelValues("create_invoice", "attempt").Inc()

	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "/info/settings/token/", nil, &tokenResp); err != nil {
		observability.GatewayRequests.WithLabelValues("create_invoice", "error").Inc()
		return domain.Invoice{}, err
	}
	if tokenResp.Token == "" {
		observability.GatewayRequests.WithLabelValues("create_invoice", "error").Inc()
		return domain.Invoice{}, errors.Wrap(domain.ErrInvalidRequest, "gateway returned no token")
	}

	form := url.Values{}
	form.Set("pay_amount", fmt.Sprintf("%.2f", req.Amount))
	form.Set("clientid", truncate(req.Customer.Name, 100))
	form.Set("orderid", req.OrderID.String())
	form.Set("service_name", truncate(req.ServiceName, 100))
	form.Set("client_email", req.Customer.Email)
	form.Set("client_phone", req.Customer.Phone)
	form.Set("token", tokenResp.Token)
	form.Set("payment_currency", "RUB")
	form.Set("payment_details", req.Details)

	var invoiceResp struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := c.postJSON(ctx, "/change/invoice/preview/", form, &invoiceResp); err != nil {
		observability.GatewayRequests.WithLabelValues("create_invoice", "error").Inc()
		return domain.Invoice{}, err
	}
	if invoiceResp.InvoiceID == "" {
		observability.GatewayRequests.WithLabelValues("create_invoice", "error").Inc()
		return domain.Invoice{}, errors.Wrap(domain.ErrInvalidRequest, "gateway returned no invoice id")
	}

	observability.GatewayRequests.WithLabelValues("create_invoice", "ok").Inc()
	return domain.Invoice{
		ID:     invoiceResp.InvoiceID,
		PayURL: c.baseURL + "/bill/" + invoiceResp.InvoiceID + "/",
	}, nil
}

// CheckStatus queries the invoice status. It is side-effect free; a
// gateway failure surfaces as an error, never as "not paid".
func (c *Client) CheckStatus(ctx context.Context, invoiceID string) (domain.PaymentStatus, error) {
	observability.GatewayRequests.WithLabelValues("check_status", "attempt").Inc()

	var statusResp struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/info/invoice/status/?id="+url.QueryEscape(invoiceID), &statusResp); err != nil {
		observability.GatewayRequests.WithLabelValues("check_status", "error").Inc()
		return "", err
	}

	switch statusResp.Status {
	case "paid":
		observability.GatewayRequests.WithLabelValues("check_status", "ok").Inc()
		return domain.PaymentPaid, nil
	case "created", "sent", "pending", "expired", "canceled":
		observability.GatewayRequests.WithLabelValues("check_status", "ok").Inc()
		return domain.PaymentNotPaid, nil
	}
	// An unknown status must never pass as "not paid"; callers release
	// reservations on that answer.
	observability.GatewayRequests.WithLabelValues("check_status", "error").Inc()
	return "", errors.Wrapf(domain.ErrInvalidRequest, "unknown invoice status %q", statusResp.Status)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, form url.Values, out interface{}) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(domain.ErrGatewayUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(domain.ErrGatewayUnavailable, "gateway returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(domain.ErrInvalidRequest, err.Error())
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

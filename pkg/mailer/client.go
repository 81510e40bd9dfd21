package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tiendly/tiendly-backend/pkg/config"
	pkgerrors "github.com/tiendly/tiendly-backend/pkg/errors"
	"github.com/tiendly/tiendly-backend/pkg/logger"
)

// Kind selects the transactional template rendered by the mail provider.
type Kind string

const (
	KindOrderReceived  Kind = "order_received"
	KindOrderApproved  Kind = "order_approved"
	KindOrderRejected  Kind = "order_rejected"
	KindOrderFulfilled Kind = "order_fulfilled"
)

var errLoggerRequired = errors.New("mailer logger is required")

// OrderEmail carries the order snapshot rendered into the email body.
type OrderEmail struct {
	To           string   `json:"to"`
	OrderID      string   `json:"orderId"`
	Status       string   `json:"status"`
	Total        string   `json:"total"`
	Currency     string   `json:"currency"`
	PointsEarned int64    `json:"pointsEarned,omitempty"`
	PointsSpent  int64    `json:"pointsSpent,omitempty"`
	LineItems    []string `json:"lineItems,omitempty"`
}

// Sender is the narrow surface consumed by the notification dispatcher.
type Sender interface {
	SendOrderEmail(ctx context.Context, kind Kind, email OrderEmail) error
}

// Client posts transactional emails to the mail provider with centralized
// auth, logging, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fromEmail  string
	logger     *logger.Logger
}

// NewClient initializes the mailer wrapper. When the base URL or API key is
// missing the client comes up disabled: sends are logged and skipped, which
// keeps local runs working without provider credentials.
func NewClient(ctx context.Context, cfg config.MailerConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		fromEmail:  strings.TrimSpace(cfg.FromEmail),
		logger:     logg,
	}

	if !c.configured() {
		logg.Warn(ctx, "mailer credentials not configured, order emails will be skipped")
		return c, nil
	}

	logg.Info(ctx, "mailer client initialized")
	return c, nil
}

func (c *Client) configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// SendOrderEmail renders the template for kind and delivers it to the order's
// customer. Provider rejections surface as dependency errors.
func (c *Client) SendOrderEmail(ctx context.Context, kind Kind, email OrderEmail) error {
	if strings.TrimSpace(email.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}

	if !c.configured() {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"template": kind,
			"order_id": email.OrderID,
		})
		c.logger.Warn(logCtx, "mailer not configured, skipping order email")
		return nil
	}

	body := struct {
		From     string     `json:"from"`
		To       string     `json:"to"`
		Template Kind       `json:"template"`
		Data     OrderEmail `json:"data"`
	}{
		From:     c.fromEmail,
		To:       email.To,
		Template: kind,
		Data:     email,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mail provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"status":   resp.StatusCode,
			"template": kind,
			"order_id": email.OrderID,
		})
		c.logger.Warn(logCtx, "mail provider rejected message")
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("mail provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"template": kind,
		"order_id": email.OrderID,
	})
	c.logger.Info(logCtx, "order email sent")
	return nil
}

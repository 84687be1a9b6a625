package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
)

type Options struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	ReturnURL   string
	Timeout     time.Duration
	MaxRetries  int
	RetryBase   time.Duration
	// RPS ограничивает частоту исходящих запросов к шлюзу. 0 — без ограничения.
	RPS float64
}

// Client: HTTP клиент Chapa-совместимого шлюза.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Registry
}

func NewClient(opts Options, m *metrics.Registry) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		metrics:    m,
	}
}

type initializeRequest struct {
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	TxRef         string        `json:"tx_ref"`
	CallbackURL   string        `json:"callback_url,omitempty"`
	ReturnURL     string        `json:"return_url,omitempty"`
	Customization customization `json:"customization"`
}

type customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type initializeResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type verifyResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    *struct {
		Status   string      `json:"status"`
		Amount   json.Number `json:"amount"`
		Currency string      `json:"currency"`
		TxRef    string      `json:"tx_ref"`
	} `json:"data"`
}

// InitiateCheckout регистрирует транзакцию и возвращает ссылку на оплату.
func (c *Client) InitiateCheckout(ctx context.Context, req escrow.CheckoutRequest) (string, error) {
	body, err := json.Marshal(initializeRequest{
		Amount:      req.Amount.Major(),
		Currency:    req.Currency,
		TxRef:       req.TxRef,
		CallbackURL: c.opts.CallbackURL,
		ReturnURL:   c.opts.ReturnURL,
		Customization: customization{
			Title:       truncate(req.Title, 16),
			Description: truncate(req.Description, 50),
		},
	})
	if err != nil {
		return "", err
	}

	var out initializeResponse
	status, err := c.do(ctx, "initialize", http.MethodPost, "/v1/transaction/initialize", body, &out)
	if err != nil {
		return "", err
	}
	if status >= 300 || out.Data.CheckoutURL == "" {
		c.observe("initialize", "rejected")
		return "", apperror.New(apperror.ErrCodeGateway, fmt.Sprintf("шлюз отклонил платёж: %s", out.Message))
	}

	c.observe("initialize", "ok")
	return out.Data.CheckoutURL, nil
}

// Verify запрашивает статус транзакции. Неизвестная шлюзу транзакция
// считается неуспешной.
func (c *Client) Verify(ctx context.Context, txRef string) (*escrow.Verification, error) {
	var out verifyResponse
	status, err := c.do(ctx, "verify", http.MethodGet, "/v1/transaction/verify/"+url.PathEscape(txRef), nil, &out)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		c.observe("verify", "not_found")
		return &escrow.Verification{TxRef: txRef, Status: valueobject.GatewayStatusFailed}, nil
	}
	if status >= 300 || out.Data == nil {
		c.observe("verify", "rejected")
		return nil, apperror.New(apperror.ErrCodeGateway, fmt.Sprintf("шлюз не подтвердил транзакцию: %s", out.Message))
	}

	v := &escrow.Verification{
		TxRef:    txRef,
		Status:   valueobject.ParseGatewayStatus(out.Data.Status),
		Currency: out.Data.Currency,
	}
	if out.Data.Amount != "" {
		amount, err := out.Data.Amount.Float64()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "шлюз вернул некорректную сумму")
		}
		v.PaidAmount = valueobject.MoneyFromMajor(amount)
	}

	c.observe("verify", "ok")
	return v, nil
}

// do выполняет запрос с повторами. Повторяются сетевые ошибки, 429 и 5xx;
// остальные ответы возвращаются вызывающему как есть.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out interface{}) (int, error) {
	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryBase << (attempt - 1)
			logger.Log.WithFields(logrus.Fields{
				"operation": op,
				"attempt":   attempt,
				"delay":     delay.String(),
				"error":     lastErr,
			}).Warn("gateway call retry")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				c.observe(op, "cancelled")
				return 0, apperror.Wrap(ctx.Err(), apperror.ErrCodeGateway, "запрос к платёжному шлюзу прерван")
			case <-timer.C:
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			c.observe(op, "cancelled")
			return 0, apperror.Wrap(err, apperror.ErrCodeGateway, "запрос к платёжному шлюзу прерван")
		}

		status, err := c.once(ctx, method, endpoint, body, out)
		if err == nil {
			return status, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	c.observe(op, "error")
	return 0, apperror.Wrap(lastErr, apperror.ErrCodeGateway, "платёжный шлюз недоступен")
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway: код ответа %d", e.code)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (c *Client) once(ctx context.Context, method, endpoint string, body []byte, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, &statusError{code: http.StatusBadRequest}
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil && resp.StatusCode < 300 {
		return resp.StatusCode, &statusError{code: http.StatusBadGateway}
	}
	return resp.StatusCode, nil
}

func (c *Client) observe(op, outcome string) {
	if c.metrics != nil {
		c.metrics.GatewayCall(op, outcome)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ escrow.Gateway = (*Client)(nil)

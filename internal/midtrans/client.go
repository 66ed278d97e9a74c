// Package midtrans wraps the Midtrans transaction API: Snap for creating
// payment sessions, the core API for status probes and cancellation.
package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type Config struct {
	SnapURL   string // e.g. https://app.sandbox.midtrans.com/snap/v1
	CoreURL   string // e.g. https://api.sandbox.midtrans.com/v2
	ServerKey string
	FinishURL string // optional redirect target for the hosted payment page
	Timeout   time.Duration
}

type Client struct {
	snapURL   string
	coreURL   string
	serverKey string
	finishURL string
	hc        *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		snapURL:   cfg.SnapURL,
		coreURL:   cfg.CoreURL,
		serverKey: cfg.ServerKey,
		finishURL: cfg.FinishURL,
		hc:        &http.Client{Timeout: timeout},
	}
}

// GatewayError is returned when the gateway call itself failed (network
// error or non-2xx). The caller must not assume the order was registered
// with the gateway.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("midtrans %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("midtrans %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type creditCard struct {
	Secure bool `json:"secure"`
}

type callbacks struct {
	Finish   string `json:"finish,omitempty"`
	Unfinish string `json:"unfinish,omitempty"`
	Cancel   string `json:"cancel,omitempty"`
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	CreditCard         creditCard         `json:"credit_card"`
	Callbacks          *callbacks         `json:"callbacks,omitempty"`
}

type SnapTransaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is the gateway's view of a transaction.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	GrossAmount       string `json:"gross_amount"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
}

// ProbeResult is tri-state: Known=true carries a gateway status, Known=false
// means the probe failed and the actual state is unknown. Callers must never
// treat Unknown as either success or failure.
type ProbeResult struct {
	Known  bool
	Status TransactionStatus
}

// CreateTransaction requests a Snap payment session for the given order ref
// and gross amount (smallest currency unit).
func (c *Client) CreateTransaction(ctx context.Context, orderRef string, grossAmount int64) (SnapTransaction, error) {
	reqBody := snapRequest{
		TransactionDetails: transactionDetails{OrderID: orderRef, GrossAmount: grossAmount},
		CreditCard:         creditCard{Secure: true},
	}
	if c.finishURL != "" {
		reqBody.Callbacks = &callbacks{Finish: c.finishURL, Unfinish: c.finishURL, Cancel: c.finishURL}
	}

	var out SnapTransaction
	if err := c.do(ctx, http.MethodPost, c.snapURL+"/transactions", &reqBody, &out); err != nil {
		return SnapTransaction{}, err
	}
	return out, nil
}

// VerifyTransaction is a best-effort status probe. Failures are logged and
// reported as Unknown, never returned as errors.
func (c *Client) VerifyTransaction(ctx context.Context, orderRef string) ProbeResult {
	var st TransactionStatus
	if err := c.do(ctx, http.MethodGet, c.coreURL+"/"+orderRef+"/status", nil, &st); err != nil {
		log.Printf("midtrans verify %s: %v", orderRef, err)
		return ProbeResult{}
	}
	return ProbeResult{Known: true, Status: st}
}

// CancelTransaction asks the gateway to cancel. An Unknown result means the
// cancellation was not confirmed; the caller must treat it as ambiguous.
func (c *Client) CancelTransaction(ctx context.Context, orderRef string) ProbeResult {
	var st TransactionStatus
	if err := c.do(ctx, http.MethodGet, c.coreURL+"/"+orderRef+"/cancel", nil, &st); err != nil {
		log.Printf("midtrans cancel %s: %v", orderRef, err)
		return ProbeResult{}
	}
	return ProbeResult{Known: true, Status: st}
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	op := method + " " + url

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &GatewayError{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Basic "+basicAuth(c.serverKey))
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	return nil
}

// basicAuth: Base64(serverKey + ":"), password kosong.
func basicAuth(serverKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
}

package azampay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wibonela/boma/config"
)

// CheckoutResult is the adapter's view of a checkout initiation. Success is
// the gateway's verdict; a transport failure surfaces as an error instead.
type CheckoutResult struct {
	Success       bool
	TransactionID string
	CheckoutURL   string
	Message       string
}

// WebhookEvent is a parsed gateway callback. ExternalID carries the booking
// id the checkout was initiated with.
type WebhookEvent struct {
	TransactionID string
	ExternalID    string
	Status        string
	Amount        int64
	Message       string
}

const (
	WebhookStatusSuccess = "success"
	WebhookStatusFailed  = "failed"
)

var supportedProviders = []string{"Mpesa", "Airtel", "Tigo", "Halopesa", "Azampesa"}

// Client wraps the AzamPay checkout/webhook protocol.
type Client struct {
	httpClient *http.Client
	appName    string
	apiURL     string
	tokens     *tokenCache
	log        zerolog.Logger
}

// NewClient builds a gateway client. The clock is injectable for token
// expiry tests; pass nil for time.Now.
func NewClient(cfg config.AzamPayConfig, log zerolog.Logger, now func() time.Time) *Client {
	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	c := &Client{
		httpClient: httpClient,
		appName:    cfg.AppName,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		log:        log.With().Str("component", "azampay").Logger(),
	}
	authURL := strings.TrimRight(cfg.AuthURL, "/")
	c.tokens = newTokenCache(tokenTTL, now, func(ctx context.Context) (string, error) {
		return fetchToken(ctx, httpClient, authURL, cfg.AppName, cfg.ClientID, cfg.ClientSecret)
	})
	return c
}

func fetchToken(ctx context.Context, httpClient *http.Client, authURL, appName, clientID, clientSecret string) (string, error) {
	payload := map[string]string{
		"appName":      appName,
		"clientId":     clientID,
		"clientSecret": clientSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL+"/AppRegistration/GenerateToken", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if decoded.Data.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}
	return decoded.Data.AccessToken, nil
}

// StartMobileMoneyCheckout initiates an MNO checkout. The gateway expects
// amounts as strings on the wire.
func (c *Client) StartMobileMoneyCheckout(ctx context.Context, account string, amount int64, externalID, provider, currency string) (*CheckoutResult, error) {
	payload := map[string]string{
		"accountNumber": account,
		"amount":        strconv.FormatInt(amount, 10),
		"currency":      currency,
		"externalId":    externalID,
		"provider":      provider,
	}
	return c.postCheckout(ctx, "/azampay/mno/checkout", payload)
}

// StartCardCheckout initiates a card checkout; the result carries the URL
// the guest must be redirected to.
func (c *Client) StartCardCheckout(ctx context.Context, amount int64, externalID, currency, email, phone string) (*CheckoutResult, error) {
	payload := map[string]string{
		"amount":     strconv.FormatInt(amount, 10),
		"currency":   currency,
		"externalId": externalID,
	}
	if email != "" {
		payload["customerEmail"] = email
	}
	if phone != "" {
		payload["customerPhone"] = FormatPhone(phone)
	}
	return c.postCheckout(ctx, "/azampay/checkout", payload)
}

func (c *Client) postCheckout(ctx context.Context, path string, payload map[string]string) (*CheckoutResult, error) {
	token, err := c.tokens.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain gateway token: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Success       bool                `json:"success"`
		TransactionID string              `json:"transactionId"`
		CheckoutURL   string              `json:"checkoutUrl"`
		Message       string              `json:"message"`
		Errors        map[string][]string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}

	c.log.Info().Str("path", path).Int("status_code", resp.StatusCode).
		Str("transaction_id", decoded.TransactionID).Bool("success", decoded.Success).
		Msg("checkout response")

	switch {
	case resp.StatusCode == http.StatusOK:
		return &CheckoutResult{
			Success:       decoded.Success,
			TransactionID: decoded.TransactionID,
			CheckoutURL:   decoded.CheckoutURL,
			Message:       decoded.Message,
		}, nil
	case resp.StatusCode == http.StatusBadRequest:
		var messages []string
		for _, fieldErrors := range decoded.Errors {
			messages = append(messages, fieldErrors...)
		}
		msg := strings.Join(messages, "; ")
		if msg == "" {
			msg = "validation error"
		}
		return &CheckoutResult{Success: false, Message: msg}, nil
	default:
		msg := decoded.Message
		if msg == "" {
			msg = "payment initiation failed"
		}
		return &CheckoutResult{Success: false, Message: msg}, nil
	}
}

// ParseWebhook decodes a raw gateway callback. Amount tolerates both string
// and numeric encodings, which the gateway mixes between providers.
func (c *Client) ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var decoded struct {
		TransactionID string      `json:"transactionId"`
		ExternalID    string      `json:"externalId"`
		Status        string      `json:"status"`
		Amount        json.Number `json:"amount"`
		Message       string      `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if decoded.TransactionID == "" {
		return nil, fmt.Errorf("webhook payload carried no transaction id")
	}

	var amount int64
	if decoded.Amount != "" {
		if parsed, err := decoded.Amount.Int64(); err == nil {
			amount = parsed
		} else if f, err := decoded.Amount.Float64(); err == nil {
			amount = int64(f)
		}
	}

	return &WebhookEvent{
		TransactionID: decoded.TransactionID,
		ExternalID:    decoded.ExternalID,
		Status:        strings.ToLower(decoded.Status),
		Amount:        amount,
		Message:       decoded.Message,
	}, nil
}

// SupportedProviders lists the mobile money networks the gateway accepts.
func SupportedProviders() []string {
	return append([]string(nil), supportedProviders...)
}

func IsSupportedProvider(provider string) bool {
	for _, p := range supportedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// FormatPhone normalizes a Tanzanian MSISDN to the 255-prefixed form the
// gateway requires.
func FormatPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	p := digits.String()
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "0") {
		return "255" + p[1:]
	}
	if !strings.HasPrefix(p, "255") {
		return "255" + p
	}
	return p
}

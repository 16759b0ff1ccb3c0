package azampay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/wibonela/boma/config"
)

func TestTokenCache_ReusesTokenUntilExpiry(t *testing.T) {
	current := time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC)
	fetches := 0
	cache := newTokenCache(55*time.Minute, func() time.Time { return current },
		func(ctx context.Context) (string, error) {
			fetches++
			return "token-1", nil
		})

	token, err := cache.get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, fetches)

	// Still inside the TTL: no refetch.
	current = current.Add(54 * time.Minute)
	token, err = cache.get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, fetches)

	// Past the TTL: one refetch.
	current = current.Add(2 * time.Minute)
	_, err = cache.get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestTokenCache_FetchErrorIsNotCached(t *testing.T) {
	calls := 0
	cache := newTokenCache(55*time.Minute, nil, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("auth down")
		}
		return "token-2", nil
	})

	_, err := cache.get(context.Background())
	assert.Error(t, err)

	token, err := cache.get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func newTestClient(t *testing.T, apiHandler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AppRegistration/GenerateToken", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"accessToken": "test-token"},
		})
	}))
	t.Cleanup(auth.Close)

	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	client := NewClient(config.AzamPayConfig{
		AppName:        "boma",
		ClientID:       "client",
		ClientSecret:   "secret",
		AuthURL:        auth.URL,
		APIURL:         api.URL,
		TimeoutSeconds: 5,
	}, zerolog.Nop(), nil)
	return client, api
}

func TestClient_StartMobileMoneyCheckout(t *testing.T) {
	var gotPayload map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/azampay/mno/checkout", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"transactionId": "azam-tx-1",
			"message":       "initiated",
		})
	})

	result, err := client.StartMobileMoneyCheckout(context.Background(), "255712345678", 176000, "booking-1", "Mpesa", "TZS")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "azam-tx-1", result.TransactionID)
	assert.Equal(t, map[string]string{
		"accountNumber": "255712345678",
		"amount":        "176000",
		"currency":      "TZS",
		"externalId":    "booking-1",
		"provider":      "Mpesa",
	}, gotPayload)
}

func TestClient_StartCardCheckout_ReturnsURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/azampay/checkout", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"transactionId": "azam-tx-2",
			"checkoutUrl":   "https://pay.example/tx-2",
		})
	})

	result, err := client.StartCardCheckout(context.Background(), 176000, "booking-2", "TZS", "guest@example.com", "0712345678")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "https://pay.example/tx-2", result.CheckoutURL)
}

func TestClient_Checkout_ValidationErrorsJoined(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": map[string][]string{
				"accountNumber": {"account number is invalid"},
			},
		})
	})

	result, err := client.StartMobileMoneyCheckout(context.Background(), "bad", 100, "booking-3", "Tigo", "TZS")

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "account number is invalid", result.Message)
}

func TestClient_Checkout_GatewayErrorMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"message": "temporarily unavailable"})
	})

	result, err := client.StartMobileMoneyCheckout(context.Background(), "255712345678", 100, "booking-4", "Airtel", "TZS")

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "temporarily unavailable", result.Message)
}

func TestClient_ParseWebhook(t *testing.T) {
	client := &Client{log: zerolog.Nop()}

	tests := []struct {
		name    string
		raw     string
		want    *WebhookEvent
		wantErr bool
	}{
		{
			name: "numeric amount",
			raw:  `{"transactionId":"tx-1","externalId":"booking-1","status":"SUCCESS","amount":176000,"message":"ok"}`,
			want: &WebhookEvent{TransactionID: "tx-1", ExternalID: "booking-1", Status: "success", Amount: 176000, Message: "ok"},
		},
		{
			name: "string amount with decimals",
			raw:  `{"transactionId":"tx-2","status":"failed","amount":"176000.00","message":"insufficient funds"}`,
			want: &WebhookEvent{TransactionID: "tx-2", Status: "failed", Amount: 176000, Message: "insufficient funds"},
		},
		{
			name: "missing amount",
			raw:  `{"transactionId":"tx-3","status":"success"}`,
			want: &WebhookEvent{TransactionID: "tx-3", Status: "success"},
		},
		{
			name:    "missing transaction id",
			raw:     `{"status":"success"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `success`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.ParseWebhook([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "255712345678"},
		{"255712345678", "255712345678"},
		{"+255 712 345 678", "255712345678"},
		{"712345678", "255712345678"},
		{"0712-345-678", "255712345678"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPhone(tt.in), "input %q", tt.in)
	}
}

func TestIsSupportedProvider(t *testing.T) {
	for _, p := range []string{"Mpesa", "Airtel", "Tigo", "Halopesa", "Azampesa"} {
		assert.True(t, IsSupportedProvider(p))
	}
	assert.False(t, IsSupportedProvider("mpesa"))
	assert.False(t, IsSupportedProvider("Vodacom"))
}

package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	CodeMaviance = "maviance"

	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
	SignatureHeader = "X-Maviance-Signature"
)

var mavianceServiceIDs = map[string]string{
	"mtn":           "6131",
	"orange":        "6132",
	"express-union": "6133",
}

// SupportedMethods lists the mobile-money networks accepted for collection, in display order.
func SupportedMethods() []string {
	return []string{"mtn", "orange", "express-union"}
}

type MavianceConfig struct {
	PublicKey      string
	SecretKey      string
	BaseURL        string
	MerchantNumber string
	WebhookSecret  string
	CallbackURL    string
	ReturnBaseURL  string
	TokenTimeout   time.Duration
	HTTPTimeout    time.Duration
}

type MavianceProvider struct {
	cfg         MavianceConfig
	client      *http.Client
	tokenClient *http.Client
}

func NewMavianceProvider(cfg MavianceConfig) *MavianceProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tokenTimeout := cfg.TokenTimeout
	if tokenTimeout <= 0 {
		tokenTimeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &MavianceProvider{
		cfg:         cfg,
		client:      &http.Client{Timeout: timeout},
		tokenClient: &http.Client{Timeout: tokenTimeout},
	}
}

func (p *MavianceProvider) Code() string {
	return CodeMaviance
}

// AccessToken performs a fresh client-credentials grant. Tokens are deliberately not
// cached: every collection or status lookup authenticates again.
func (p *MavianceProvider) AccessToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.cfg.PublicKey) == "" || strings.TrimSpace(p.cfg.SecretKey) == "" {
		return "", ErrProviderNotConfigured
	}

	cc := &clientcredentials.Config{
		ClientID:     p.cfg.PublicKey,
		ClientSecret: p.cfg.SecretKey,
		TokenURL:     p.cfg.BaseURL + "/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	token, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, p.tokenClient))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			statusCode := 0
			if retrieveErr.Response != nil {
				statusCode = retrieveErr.Response.StatusCode
			}
			return "", &AuthError{StatusCode: statusCode, Body: string(retrieveErr.Body)}
		}
		return "", err
	}

	return token.AccessToken, nil
}

func (p *MavianceProvider) Collect(ctx context.Context, input *CollectInput) (*CollectOutput, error) {
	serviceID, ok := mavianceServiceIDs[strings.ToLower(strings.TrimSpace(input.PaymentMethod))]
	if !ok {
		return nil, ErrUnsupportedMethod
	}
	if strings.TrimSpace(p.cfg.MerchantNumber) == "" {
		return nil, ErrProviderNotConfigured
	}

	accessToken, err := p.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	request := mavianceCollectRequest{
		Amount: mavianceAmount{
			Value:    strconv.FormatInt(input.Amount, 10),
			Currency: input.Currency,
		},
		ServiceID: serviceID,
		Payer: maviancePayer{
			Type:  "CUSTOMER",
			ID:    input.Phone,
			Name:  input.PayerName,
			Email: input.PayerEmail,
			Phone: input.Phone,
		},
		OrderID:     input.Reference,
		Description: input.Description,
		Merchant:    mavianceMerchant{Number: p.cfg.MerchantNumber},
		CallbackURL: p.cfg.CallbackURL,
		ReturnURL:   joinURL(p.cfg.ReturnBaseURL, input.Reference),
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	respBody, err := p.do(ctx, "collect", http.MethodPost, "/collect", accessToken, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		PaymentURL       string      `json:"paymentUrl"`
		URL              string      `json:"url"`
		AuthorizationURL string      `json:"authorization_url"`
		Status           string      `json:"status"`
		PTN              interface{} `json:"ptn"`
		TransactionID    interface{} `json:"transactionid"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, err
	}

	paymentURL := firstNonEmpty(payload.PaymentURL, payload.URL, payload.AuthorizationURL)
	if paymentURL == "" {
		return nil, ErrMissingPaymentURL
	}

	status := ParseStatus(payload.Status)
	if status == "" {
		status = StatusPending
	}

	return &CollectOutput{
		PaymentURL:            paymentURL,
		Status:                status,
		ProviderTransactionID: firstNonEmpty(parseStringish(payload.TransactionID), parseStringish(payload.PTN)),
		RawResponse:           string(respBody),
	}, nil
}

func (p *MavianceProvider) QueryStatus(ctx context.Context, reference string) (Status, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", nil
	}

	accessToken, err := p.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	body, err := p.do(ctx, "verifytx", http.MethodGet, "/verifytx?trid="+url.QueryEscape(reference), accessToken, nil)
	if err != nil {
		return "", err
	}

	type statusPayload struct {
		Status string `json:"status"`
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []statusPayload
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", err
		}
		if len(items) == 0 {
			return "", nil
		}
		return ParseStatus(items[0].Status), nil
	}

	var item statusPayload
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return "", err
	}
	return ParseStatus(item.Status), nil
}

// VerifyAndParseCallback authenticates a webhook delivery and extracts the order reference.
// With no webhook secret configured the signature is not checked; configuration loading
// refuses that setup in production.
func (p *MavianceProvider) VerifyAndParseCallback(_ context.Context, payload []byte, signature string) (*CallbackEvent, error) {
	if strings.TrimSpace(p.cfg.WebhookSecret) != "" && !verifySignature(payload, signature, p.cfg.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	fields, err := parseCallbackFields(payload)
	if err != nil {
		return nil, err
	}

	return &CallbackEvent{
		Reference:             firstNonEmpty(fields["orderid"], fields["reference"], fields["trid"]),
		Status:                ParseStatus(fields["status"]),
		ProviderTransactionID: firstNonEmpty(fields["transactionid"], fields["ptn"]),
	}, nil
}

func (p *MavianceProvider) do(ctx context.Context, operation, method, path, accessToken string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Operation: operation, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

type mavianceCollectRequest struct {
	Amount      mavianceAmount   `json:"amount"`
	ServiceID   string           `json:"serviceid"`
	Payer       maviancePayer    `json:"payer"`
	OrderID     string           `json:"orderid"`
	Description string           `json:"description"`
	Merchant    mavianceMerchant `json:"merchant"`
	CallbackURL string           `json:"callback_url,omitempty"`
	ReturnURL   string           `json:"return_url,omitempty"`
}

type mavianceAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type maviancePayer struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type mavianceMerchant struct {
	Number string `json:"number"`
}

func verifySignature(payload []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return false
	}

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(candidate, mac.Sum(nil))
}

// SignPayload computes the signature header value for a webhook body.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseCallbackFields(payload []byte) (map[string]string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrMalformedCallback
	}

	fields := make(map[string]string)
	if trimmed[0] == '{' {
		var raw map[string]interface{}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		for k, v := range raw {
			fields[strings.ToLower(k)] = parseStringish(v)
		}
		return fields, nil
	}

	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	for k := range values {
		fields[strings.ToLower(k)] = strings.TrimSpace(values.Get(k))
	}
	return fields, nil
}

func parseStringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func joinURL(baseURL, segment string) string {
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	segment = strings.TrimSpace(segment)
	if baseURL == "" || segment == "" {
		return ""
	}
	return baseURL + "/" + url.PathEscape(segment)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

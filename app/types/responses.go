package types

type InitializePaymentData struct {
	Reference  string `json:"reference"`
	PaymentURL string `json:"paymentUrl"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
}

type InitializePaymentResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    *InitializePaymentData `json:"data"`
}

type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Paid    bool   `json:"paid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type PaymentStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
}

type WebhookResponse struct {
	Received  bool   `json:"received"`
	Success   bool   `json:"success,omitempty"`
	Message   string `json:"message,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type ProviderConfig struct {
	Provider         string   `json:"provider"`
	Mode             string   `json:"mode"`
	BaseURL          string   `json:"base_url"`
	WebhookURL       string   `json:"webhook_url"`
	SupportedMethods []string `json:"supported_methods"`
	Currency         string   `json:"currency"`
	Status           string   `json:"status"`
}

type ConfigResponse struct {
	Success bool            `json:"success"`
	Config  *ProviderConfig `json:"config"`
}

type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Mode      string  `json:"mode"`
	Provider  string  `json:"provider"`
}

type IndexResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Mode      string            `json:"mode"`
	Endpoints map[string]string `json:"endpoints"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Method  string `json:"method,omitempty"`
}

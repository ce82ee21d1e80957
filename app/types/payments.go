package types

import (
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
)

type InitializePaymentRequest struct {
	Amount        int64  `json:"amount"`
	Phone         string `json:"phone"`
	PaymentMethod string `json:"payment_method"`
	Description   string `json:"description"`

	UserId    string `json:"-"`
	UserEmail string `json:"-"`
	UserName  string `json:"-"`
}

func (r *InitializePaymentRequest) GetAmount() int64 {
	if r == nil {
		return 0
	}
	return r.Amount
}

func (r *InitializePaymentRequest) GetPhone() string {
	if r == nil {
		return ""
	}
	return r.Phone
}

func (r *InitializePaymentRequest) GetPaymentMethod() string {
	if r == nil {
		return ""
	}
	return r.PaymentMethod
}

func (r *InitializePaymentRequest) GetDescription() string {
	if r == nil {
		return ""
	}
	return r.Description
}

func (r *InitializePaymentRequest) GetUserId() string {
	if r == nil {
		return ""
	}
	return r.UserId
}

func (r *InitializePaymentRequest) GetUserEmail() string {
	if r == nil {
		return ""
	}
	return r.UserEmail
}

func (r *InitializePaymentRequest) GetUserName() string {
	if r == nil {
		return ""
	}
	return r.UserName
}

func NewInitializePaymentRequestFromContext(ctx echo.Context) (*InitializePaymentRequest, error) {
	var body InitializePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Phone = normalizePhone(body.Phone)
	body.PaymentMethod = strings.ToLower(strings.TrimSpace(body.PaymentMethod))
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *InitializePaymentRequest) Validate() error {
	if r.GetAmount() < 0 {
		return errors.New("amount must be > 0")
	}
	phone := r.GetPhone()
	if len(phone) < 9 || !isDigits(phone) {
		return errors.New("invalid phone number")
	}
	if !isSupportedPaymentMethod(r.GetPaymentMethod()) {
		return errors.New("unsupported payment method")
	}
	return nil
}

type HandleProviderCallbackRequest struct {
	Provider  string
	Signature string
	Payload   string
}

func (r *HandleProviderCallbackRequest) GetProvider() string {
	if r == nil {
		return ""
	}
	return r.Provider
}

func (r *HandleProviderCallbackRequest) GetSignature() string {
	if r == nil {
		return ""
	}
	return r.Signature
}

func (r *HandleProviderCallbackRequest) GetPayload() string {
	if r == nil {
		return ""
	}
	return r.Payload
}

// NewHandleProviderCallbackRequestFromContext keeps the raw body untouched: the signature
// is computed over the exact bytes the provider sent.
func NewHandleProviderCallbackRequestFromContext(ctx echo.Context) (*HandleProviderCallbackRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	signature := strings.TrimSpace(ctx.Request().Header.Get(provider.SignatureHeader))
	if signature == "" {
		signature = strings.TrimSpace(ctx.Request().Header.Get("X-Provider-Signature"))
	}

	return &HandleProviderCallbackRequest{
		Provider:  strings.TrimSpace(strings.ToLower(ctx.Param("provider"))),
		Signature: signature,
		Payload:   string(rawBody),
	}, nil
}

func (r *HandleProviderCallbackRequest) Validate() error {
	if strings.TrimSpace(r.GetProvider()) == "" {
		return errors.New("provider is required")
	}
	return nil
}

type ReferenceRequest struct {
	Reference string
}

func NewReferenceRequestFromContext(ctx echo.Context) *ReferenceRequest {
	return &ReferenceRequest{Reference: strings.TrimSpace(ctx.Param("reference"))}
}

func (r *ReferenceRequest) Validate() error {
	if r.Reference == "" {
		return errors.New("reference is required")
	}
	if len(r.Reference) > 64 {
		return errors.New("reference is too long")
	}
	return nil
}

func normalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")
	return strings.NewReplacer(" ", "", "-", "").Replace(phone)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isSupportedPaymentMethod(method string) bool {
	for _, item := range provider.SupportedMethods() {
		if item == method {
			return true
		}
	}
	return false
}

package mapper

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/types"
)

func TransactionToInitializeData(item *entity.Transaction) *types.InitializePaymentData {
	if item == nil {
		return nil
	}

	return &types.InitializePaymentData{
		Reference:  item.Reference,
		PaymentURL: derefString(item.PaymentURL),
		Status:     string(item.Status),
		Amount:     item.Amount,
	}
}

func TransactionToStatus(item *entity.Transaction) *types.PaymentStatusResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentStatusResponse{
		Reference: item.Reference,
		Status:    string(item.Status),
		Paid:      item.Paid(),
	}
}

func TransactionToVerify(item *entity.Transaction) *types.VerifyPaymentResponse {
	if item == nil {
		return nil
	}

	message := "Payment not completed yet"
	switch item.Status {
	case entity.TransactionStatusCompleted:
		message = "Payment completed"
	case entity.TransactionStatusFailed:
		message = "Payment failed"
	}

	return &types.VerifyPaymentResponse{
		Success: true,
		Paid:    item.Paid(),
		Status:  string(item.Status),
		Message: message,
	}
}

// TransactionToStruct renders a transaction for internal RPC callers.
func TransactionToStruct(item *entity.Transaction) (*structpb.Struct, error) {
	if item == nil {
		return &structpb.Struct{}, nil
	}

	metadata := make(map[string]interface{}, len(item.Metadata))
	for k, v := range item.Metadata {
		metadata[k] = v
	}

	return structpb.NewStruct(map[string]interface{}{
		"reference":               item.Reference,
		"user_id":                 item.UserID,
		"amount":                  float64(item.Amount),
		"currency":                item.Currency,
		"payment_method":          item.PaymentMethod,
		"status":                  string(item.Status),
		"paid":                    item.Paid(),
		"provider_status":         derefString(item.ProviderStatus),
		"provider_transaction_id": derefString(item.ProviderTransactionID),
		"payment_url":             derefString(item.PaymentURL),
		"metadata":                metadata,
		"created_at":              item.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":              item.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/foodorder/internal/api"
	"github.com/hitoshi/foodorder/internal/model"
)

// Client は支払い方法のバックエンドAPIのインターフェース。
type Client interface {
	ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, input api.PaymentMethodInput) error
	UpdatePaymentMethod(ctx context.Context, id model.ID, input api.PaymentMethodInput) error
}

// Service は支払い方法の管理を提供する。変更操作は管理者のみ実行できる。
type Service struct {
	client Client
}

// NewService はServiceを生成する。
func NewService(client Client) *Service {
	return &Service{client: client}
}

// List は支払い方法の一覧を返す。
func (s *Service) List(ctx context.Context) ([]model.PaymentMethod, error) {
	methods, err := s.client.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

// Find は一覧から指定IDの支払い方法を探す。見つからない場合はnilを返す。
func Find(methods []model.PaymentMethod, id model.ID) *model.PaymentMethod {
	for i := range methods {
		if methods[i].ID.Equal(id) {
			return &methods[i]
		}
	}
	return nil
}

// Save は支払い方法を追加する。idが指定された場合は更新する。
// detailsがJSONオブジェクトでない場合はバックエンドに送信しない。
func (s *Service) Save(ctx context.Context, user *model.User, id model.ID, methodType, detailsText string) error {
	if !user.IsAdmin() {
		return model.NewAccessDeniedError()
	}

	details, err := ParseDetails(detailsText)
	if err != nil {
		return model.NewInvalidDetailsError()
	}

	input := api.PaymentMethodInput{Type: methodType, Details: details}
	if id.IsZero() {
		err = s.client.CreatePaymentMethod(ctx, input)
	} else {
		err = s.client.UpdatePaymentMethod(ctx, id, input)
	}
	if err != nil {
		slog.Error("failed to save payment method",
			slog.String("payment_method_id", id.String()),
			slog.String("error", err.Error()),
		)
		return model.NewPaymentMethodFailureError(api.Message(err))
	}

	slog.Info("payment method saved",
		slog.String("payment_method_id", id.String()),
		slog.String("type", methodType),
		slog.Bool("created", id.IsZero()),
	)
	return nil
}

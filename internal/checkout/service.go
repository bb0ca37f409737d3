package checkout

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/core/common/validation"
	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/core/events"
	"github.com/frahmantamala/pix-deposit/internal/currency"
	"github.com/frahmantamala/pix-deposit/internal/identity"
	"github.com/frahmantamala/pix-deposit/internal/session"
	"github.com/frahmantamala/pix-deposit/internal/taxid"
)

type Service struct {
	identity IdentityLookup
	gateway  PaymentCreator
	ledger   LedgerWriter
	bus      *events.EventBus
	config   Config
	logger   *slog.Logger
}

func NewService(identity IdentityLookup, gateway PaymentCreator, ledger LedgerWriter, bus *events.EventBus, config Config, logger *slog.Logger) *Service {
	if config.ItemTitle == "" {
		config.ItemTitle = "Depósito PIX"
	}
	return &Service{
		identity: identity,
		gateway:  gateway,
		ledger:   ledger,
		bus:      bus,
		config:   config,
		logger:   logger,
	}
}

var _ ServiceAPI = (*Service)(nil)

// LookupName resolves the CPF holder's name. Unknown or invalid numbers yield
// ErrCPFNotFound, which callers show as a notice and let the user type the name.
func (s *Service) LookupName(ctx context.Context, cpf string) (string, error) {
	digits := taxid.Strip(cpf)
	if !taxid.Complete(digits) {
		return "", errors.NewValidationFieldError("cpf", "cpf must have 11 digits", errors.ErrCodeInvalidCPF)
	}

	name, err := s.identity.LookupName(ctx, digits)
	if err != nil {
		if stdErrors.Is(err, identity.ErrNotFound) || stdErrors.Is(err, identity.ErrInvalidCPF) {
			s.logger.Info("cpf lookup found nothing", "cpf", taxid.Mask(digits))
			return "", errors.ErrCPFNotFound
		}
		s.logger.Error("cpf lookup failed", "error", err)
		return "", errors.NewExternalError("CPF lookup unavailable", errors.ErrCodeLookupFailed, err)
	}
	return name, nil
}

// ParseAmount normalizes the amount field after a keystroke.
func (s *Service) ParseAmount(input, previous string) AmountView {
	canonical := currency.ParseKeystroke(input, previous)
	return AmountView{
		Amount:  canonical,
		Display: currency.FormatForDisplay(canonical),
	}
}

// Submit creates the PIX charge. The amount is converted to minor units here
// and nowhere else. A provider failure is returned as an EXTERNAL_ERROR and
// nothing is retried.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*session.PaymentInfo, error) {
	name := strings.TrimSpace(req.Name)
	cpf := taxid.Strip(req.CPF)
	amount := strings.TrimSpace(req.Amount)

	validator := validation.NewValidator()
	validator.Field("name", name).PersonName()
	validator.Field("cpf", cpf).Required().CPF()
	validator.Field("amount", amount).Required().CanonicalAmount()
	if appErr := validator.Validate(); appErr != nil {
		return nil, appErr
	}

	cents, err := currency.ToMinorUnits(amount)
	if err != nil {
		return nil, errors.NewValidationFieldError("amount", err.Error(), errors.ErrCodeInvalidAmount)
	}
	if appErr := validation.ValidateMinorAmount("amount", cents, s.maxCents()); appErr != nil {
		return nil, appErr
	}

	created, err := s.gateway.CreatePayment(ctx, &paymentgatewaytypes.CreatePaymentRequest{
		Name:          name,
		Email:         s.config.CustomerEmail,
		CPF:           cpf,
		Phone:         s.config.CustomerPhone,
		PaymentMethod: paymentgatewaytypes.PaymentMethodPIX,
		Amount:        cents,
		Items: []paymentgatewaytypes.Item{{
			UnitPrice: cents,
			Title:     s.config.ItemTitle,
			Quantity:  1,
			Tangible:  false,
		}},
	})
	if err != nil {
		s.logger.Error("payment creation failed", "amount", cents, "error", err)
		return nil, errors.NewExternalError("Erro ao processar pagamento", errors.ErrCodePaymentCreationFailed, err)
	}

	s.logger.Info("pix payment submitted", "payment_id", created.ID, "amount", cents)

	s.record(ctx, created, name, cpf, cents)

	return &session.PaymentInfo{
		ID:      created.ID,
		PixCode: created.PixCode,
		QrCode:  created.PixQrCode,
		Amount:  currency.FromMinorUnits(cents),
		Name:    name,
		CPF:     cpf,
	}, nil
}

// record writes the ledger row and announces the submission. The charge
// already exists at the provider, so neither failure is returned.
func (s *Service) record(ctx context.Context, created *paymentgatewaytypes.CreatePaymentResponse, name, cpf string, cents int64) {
	if s.ledger != nil {
		row := &payment.Payment{
			GatewayID:   created.ID,
			CPF:         cpf,
			Name:        name,
			AmountMinor: cents,
			Status:      payment.StatusPending,
			PixCode:     created.PixCode,
			PixQrCode:   created.PixQrCode,
		}
		if err := s.ledger.Create(ctx, row); err != nil {
			s.logger.Error("failed to write ledger row", "payment_id", created.ID, "error", err)
		}
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.NewPaymentSubmittedEvent(created.ID, name, cpf, cents)); err != nil {
			s.logger.Error("failed to publish submission", "payment_id", created.ID, "error", err)
		}
	}
}

func (s *Service) maxCents() int64 {
	if s.config.MaxAmount == "" {
		return 0
	}
	cents, err := currency.ToMinorUnits(s.config.MaxAmount)
	if err != nil {
		s.logger.Warn("ignoring malformed max amount", "max_amount", s.config.MaxAmount)
		return 0
	}
	return cents
}

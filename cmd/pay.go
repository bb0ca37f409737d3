package cmd

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/checkout"
	"github.com/frahmantamala/pix-deposit/internal/currency"
	"github.com/frahmantamala/pix-deposit/internal/identity"
	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/poller"
	"github.com/frahmantamala/pix-deposit/internal/taxid"
	"github.com/frahmantamala/pix-deposit/pkg/logger"
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Create a PIX charge from the terminal",
	Long: `Create a PIX charge for a CPF and amount and print the copy-and-paste code.
The amount is read the way the amount field reads keystrokes, so "1.234,56" and "R$ 50" both work.
Without --name the holder name is looked up from the CPF.`,
	RunE: runPay,
}

var (
	payName  string
	payCPF   string
	payValue string
	payWatch bool
)

func runPay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	log := logger.Discard()
	out := cmd.OutOrStdout()

	gateway, err := paymentgateway.New(cfg.Payment, log)
	if err != nil {
		return err
	}
	identityClient := identity.NewClient(identity.Config{
		BaseURL: cfg.Identity.BaseURL,
		Token:   cfg.Identity.Token,
		Package: cfg.Identity.Package,
		Timeout: cfg.Identity.Timeout,
	}, log)
	service := checkout.NewService(identityClient, gateway, nil, nil, checkoutConfig(cfg.Payment), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name := payName
	if name == "" {
		name, err = service.LookupName(ctx, payCPF)
		if err != nil {
			if stdErrors.Is(err, errors.ErrCPFNotFound) {
				return fmt.Errorf("%s; pass the name with --name", err.Error())
			}
			return err
		}
		fmt.Fprintf(out, "Nome: %s\n", name)
	}

	amount := currency.ParseKeystroke(payValue, currency.Zero)
	info, err := service.Submit(ctx, checkout.SubmitRequest{Name: name, CPF: payCPF, Amount: amount})
	if err != nil {
		return describeError(err)
	}

	fmt.Fprintf(out, "Pagamento: %s\n", info.ID)
	fmt.Fprintf(out, "Valor:     %s\n", currency.FormatForDisplay(info.Amount))
	fmt.Fprintf(out, "CPF:       %s\n", taxid.Mask(info.CPF))
	fmt.Fprintf(out, "PIX copia e cola:\n%s\n", info.PixCode)

	if !payWatch {
		return nil
	}

	hub := paymentpkg.NewHub(gateway, pollerConfig(cfg.Payment), nil, log)
	defer hub.Close()
	return watchPayment(ctx, paymentpkg.NewService(nil, nil, gateway, hub, log), info.ID, out)
}

// watchPayment prints one line per snapshot until the payment resolves.
func watchPayment(ctx context.Context, service *paymentpkg.Service, paymentID string, out io.Writer) error {
	var final poller.Snapshot
	err := service.Watch(ctx, paymentID, func(snapshot poller.Snapshot) {
		final = snapshot
		switch {
		case snapshot.State == poller.StateError:
			fmt.Fprintf(out, "[%d] erro ao consultar status: %s\n", snapshot.Attempt, snapshot.Error)
			if snapshot.PersistentFailure {
				fmt.Fprintf(out, "o status não pôde ser consultado %d vezes seguidas\n", snapshot.ConsecutiveErrors)
			}
		default:
			fmt.Fprintf(out, "[%d] %s\n", snapshot.Attempt, snapshot.Label)
		}
	})
	if err != nil {
		return describeError(err)
	}
	if final.State.IsTerminal() {
		fmt.Fprintf(out, "Status final: %s (%s)\n", final.Label, final.State)
	}
	return nil
}

// describeError flattens validation details into one line for the terminal.
func describeError(err error) error {
	appErr, ok := errors.IsAppError(err)
	if !ok {
		return err
	}
	if msg := appErr.GetDetailedMessage(); msg != "" {
		return stdErrors.New(msg)
	}
	return err
}

func init() {
	payCmd.Flags().StringVar(&payName, "name", "", "payer name (looked up from the CPF when empty)")
	payCmd.Flags().StringVar(&payCPF, "cpf", "", "payer CPF, with or without punctuation")
	payCmd.Flags().StringVar(&payValue, "amount", "", `amount as typed, e.g. "50,00"`)
	payCmd.Flags().BoolVarP(&payWatch, "watch", "w", false, "follow the payment until it resolves")
	_ = payCmd.MarkFlagRequired("cpf")
	_ = payCmd.MarkFlagRequired("amount")
}

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/identity"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
	"github.com/frahmantamala/pix-deposit/pkg/logger"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run a local PIX provider and CPF lookup",
	Long: `Serve an in-memory PIX provider on / and a CPF lookup service on /identity,
so the server can run without third-party credentials.`,
	RunE: runSandbox,
}

var (
	sandboxPort         int
	sandboxResolveAfter int
	sandboxFinalStatus  string
	sandboxName         string
)

func runSandbox(cmd *cobra.Command, _ []string) error {
	log := logger.LoggerWrapper()

	finalStatus, ok := paymentgatewaytypes.ParseStatus(sandboxFinalStatus)
	if !ok || !finalStatus.IsTerminal() {
		return fmt.Errorf("final status must be one of APPROVED, REJECTED, REFUNDED, CHARGEBACK")
	}

	provider := paymentgateway.NewSandbox(paymentgateway.SandboxConfig{
		ResolveAfter: sandboxResolveAfter,
		FinalStatus:  finalStatus,
	}, log)

	router := chi.NewRouter()
	router.Mount("/identity", identity.NewSandbox(nil, sandboxName))
	router.Handle("/*", provider)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", sandboxPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	log.Info("sandbox listening",
		"address", server.Addr,
		"identity_base_url", fmt.Sprintf("http://localhost:%d/identity", sandboxPort),
		"resolve_after", sandboxResolveAfter,
		"final_status", finalStatus)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "sandbox failed: %v\n", err)
			return err
		}
		return nil
	}
}

func init() {
	sandboxCmd.Flags().IntVarP(&sandboxPort, "port", "p", 9090, "port to listen on")
	sandboxCmd.Flags().IntVar(&sandboxResolveAfter, "resolve-after", 3, "status polls answered PENDING before a payment resolves")
	sandboxCmd.Flags().StringVar(&sandboxFinalStatus, "final-status", "APPROVED", "status a payment resolves to")
	sandboxCmd.Flags().StringVar(&sandboxName, "name", "MARIA SILVA", "name returned for any valid CPF")
}

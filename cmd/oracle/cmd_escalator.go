package main

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/escalation"
)

var escalatorListen string

// #region escalator
var escalatorCmd = &cobra.Command{
	Use:   "escalator",
	Short: "Run escalation backends",
}

var escalatorServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured OpenAI-compatible backend over gRPC",
	Long: `Exposes the openai escalation backend as the gRPC EscalationService, so
oracle instances configured with the grpc backend can share one model gateway
and its rate limit.`,
	RunE: runEscalatorServe,
}

func runEscalatorServe(cmd *cobra.Command, args []string) error {
	if cfg.Escalation.Backend != "openai" {
		return fmt.Errorf("escalator serve needs escalation.backend openai, got %q", cfg.Escalation.Backend)
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	backend, closeFn, err := escalation.New(cfg.Escalation, cat)
	if err != nil {
		return err
	}
	defer closeFn()

	lis, err := net.Listen("tcp", escalatorListen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", escalatorListen, err)
	}
	srv := grpc.NewServer()
	escalation.RegisterServer(srv, backend)

	go func() {
		<-cmd.Context().Done()
		srv.GracefulStop()
	}()
	logger.Info("escalator serving", zap.String("addr", lis.Addr().String()), zap.String("model", cfg.Escalation.OpenAI.Model))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// #endregion escalator

func init() {
	escalatorServeCmd.Flags().StringVar(&escalatorListen, "listen", ":50061", "gRPC listen address")
	escalatorCmd.AddCommand(escalatorServeCmd)
}

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jstzkernel/core"
	pkgconfig "jstzkernel/pkg/config"
)

func runCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "drain the inbox and serve the debug submission API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pkgconfig.Load(env)
			if err != nil {
				return err
			}
			return runKernel(cfg)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay name")
	return cmd
}

func runKernel(cfg *pkgconfig.Config) error {
	hrt, err := core.OpenWALHostRuntime(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer hrt.Close()

	kcfg := &core.KernelConfig{
		DefaultGasLimit: cfg.VM.DefaultGasLimit,
		MaxGasLimit:     cfg.VM.MaxGasLimit,
		OutboxBound:     cfg.Storage.OutboxBound,
	}
	if cfg.Network.RollupAddress != "" {
		raw, err := hex.DecodeString(cfg.Network.RollupAddress)
		if err != nil {
			return core.Wrap(core.KindInvalidAddress, err, "decode rollup_address")
		}
		if len(raw) != len(kcfg.RollupAddress) {
			return core.New(core.KindInvalidAddress, "rollup_address must decode to %d bytes, got %d", len(kcfg.RollupAddress), len(raw))
		}
		copy(kcfg.RollupAddress[:], raw)
	}
	if cfg.Network.NativeTicketer != "" {
		addr, err := core.ParseAddress(cfg.Network.NativeTicketer)
		if err != nil {
			return err
		}
		kcfg.NativeTicketer = addr
	}
	if cfg.Network.WithdrawalContract != "" {
		addr, err := core.ParseAddress(cfg.Network.WithdrawalContract)
		if err != nil {
			return err
		}
		kcfg.WithdrawalContract = addr
	}

	kernel := core.NewKernel(hrt, kcfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Network.DebugListenAddr != "" {
		debug := core.NewDebugServer(kernel)
		srv = &http.Server{
			Addr:         cfg.Network.DebugListenAddr,
			Handler:      debug.Router(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		go func() {
			logrus.WithField("addr", cfg.Network.DebugListenAddr).Info("debug server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("debug server stopped")
			}
		}()
	}

	stopKernel := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- kernel.Run(stopKernel, 500*time.Millisecond)
	}()

	<-ctx.Done()
	logrus.Info("shutdown signal received")
	close(stopKernel)
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return <-done
}

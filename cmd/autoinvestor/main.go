package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/pdanelson/bondora-auto-investor/internal/auth"
	"github.com/pdanelson/bondora-auto-investor/internal/config"
	cronrunner "github.com/pdanelson/bondora-auto-investor/internal/cron"
	"github.com/pdanelson/bondora-auto-investor/internal/logger"
	"github.com/pdanelson/bondora-auto-investor/internal/service"
)

func main() {
	invest := flag.Bool("invest", false, "run one bidding pass and exit")
	flag.Parse()

	cfgPath := os.Getenv("AI_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("AI_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if flag.Arg(0) == "token" {
		os.Exit(mintToken(cfg, flag.Arg(1)))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.close()

	if cfg.Invest.DryRun {
		log.Info("dry run enabled, bids will not be submitted")
	}

	if *invest {
		_, err := a.invest.RunOnce(ctx, service.TriggerCLI)
		code := exitCode(err)
		if err != nil && code != 0 {
			log.Error("pass failed", zap.Error(err))
		}
		a.close()
		_ = log.Sync()
		os.Exit(code)
	}

	serve(ctx, a)
}

func serve(ctx context.Context, a *app) {
	log := a.logger
	if strings.EqualFold(a.cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if !a.jwt().Enabled() {
		log.Warn("auth.secret is empty, operator API is unauthenticated")
	}

	cronRunner := cronrunner.New(log, ctx)
	if a.cfg.Cron.Enabled {
		if _, err := cronRunner.Add(a.cfg.Cron.Invest, a.invest.RunScheduled); err != nil {
			log.Fatal("cron register invest pass failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", a.cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	// A manual pass in flight keeps its request open; let it finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Invest.PassTimeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
}

func mintToken(cfg config.Config, subject string) int {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		fmt.Fprintln(os.Stderr, "usage: autoinvestor token <subject>")
		return 2
	}
	j := auth.JWT{Secret: []byte(cfg.Auth.Secret), Issuer: cfg.Auth.Issuer, TokenTTL: cfg.Auth.TokenTTL}
	tok, exp, err := j.Sign(auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	return 0
}

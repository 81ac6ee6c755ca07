// cmd/server/main.go

// 本服務提供個人與企業帳戶的建立、轉帳、貸款、歷史郵件等 RESTful API。
// 此檔案負責讀取設定、初始化日誌與各模組，啟動 HTTP 伺服器，
// 並在收到 SIGINT/SIGTERM 時優雅停機、結束前保存帳戶快照。

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"bankapi/internal/config"
	"bankapi/internal/logger"
)

func main() {
	configPath := pflag.String("config", "config/config.yaml", "path to the YAML config file")
	pflag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	zl, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. 初始化應用
	ctx := context.Background()
	app, cleanup, err := InitializeApp(ctx, cfg, zl)
	if err != nil {
		zl.Errorf(ctx, "Failed to initialize app: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	// 3. 啟動 HTTP Server（背景 goroutine）
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Handler,
	}
	serverErr := make(chan error, 1)
	go func() {
		zl.Infof(ctx, "Bank server running at %s (storage=%s)", addr, cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 4. 優雅停機
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zl.Infof(ctx, "Received shutdown signal, gracefully shutting down...")
	case err := <-serverErr:
		zl.Errorf(ctx, "HTTP server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warnf(ctx, "HTTP server shutdown error: %v", err)
	}

	// 只在帳戶集合與後端同步時保存，避免以空集合覆蓋遠端資料
	if cfg.Storage.Autosave || cfg.Storage.LoadOnStart {
		if n, err := app.Server.SaveAll(shutdownCtx); err != nil {
			zl.Errorf(ctx, "Save on exit failed: %v", err)
		} else {
			zl.Infof(ctx, "Saved %d accounts on exit", n)
		}
	}
	zl.Infof(ctx, "Application stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jonatan852/columnar-datasource/internal/api"
	"github.com/Jonatan852/columnar-datasource/internal/app"
	"github.com/Jonatan852/columnar-datasource/internal/config"
	"github.com/Jonatan852/columnar-datasource/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "Arquivo de configuração yaml")
		httpAddr   = flag.String("http-addr", "", "Endereço HTTP para expor a API (sobrepõe server.addr)")
		dataPath   = flag.String("data", "", "Arquivo csv ou csv.gz carregado na inicialização (sobrepõe data.path)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("erro lendo configuração", slog.Any("error", err))
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}

	logger, cleanup, err := logging.Setup(logging.Options{Level: cfg.Log.Level, SeqURL: cfg.Log.SeqURL, Output: os.Stdout})
	if err != nil {
		slog.Error("erro configurando logs", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logger)

	sess, err := app.OpenSession(cfg, logger)
	if err != nil {
		logger.Error("falha ao carregar tabela", slog.String("path", cfg.Data.Path), slog.Any("error", err))
		cleanup()
		os.Exit(1)
	}

	server, err := api.NewServer(api.Config{
		Addr:         cfg.Server.Addr,
		Session:      sess,
		Logger:       logger,
		Loader:       cfg.LoaderOptions(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	if err != nil {
		logger.Error("erro criando API", slog.Any("error", err))
		cleanup()
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// aguarda sinal para encerramento
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("encerrando servidor...")
	case err := <-errCh:
		logger.Error("erro no servidor", slog.Any("error", err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

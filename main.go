package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"project_plan_chat/config"
	"project_plan_chat/generator"
	"project_plan_chat/server"
	"project_plan_chat/store"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config.json or config.yaml")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	prompt := flag.String("prompt", "", "send one message and stream the reply to stdout")
	model := flag.String("model", "", "model for --prompt (defaults to config.default_model)")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, *serve, *addr, *prompt, *model, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, serve bool, addr, prompt, model string, logger *slog.Logger) error {
	if !serve && prompt == "" {
		return errors.New("either --serve or --prompt is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	agent, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !serve {
		return runPrompt(ctx, agent, model, prompt)
	}

	st, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(agent, st, server.Options{Logger: logger, RequestTimeout: cfg.RequestTimeout()})
	if err != nil {
		return err
	}
	listen := cfg.ServerAddr
	if addr != "" {
		listen = addr
	}
	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting web server", "addr", listen, "storage", cfg.Storage.Driver, "default_model", agent.Router().DefaultModel())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildAgent(cfg config.Config, logger *slog.Logger) (*generator.Agent, error) {
	settings, err := cfg.LLMSettings(logger)
	if err != nil {
		return nil, err
	}
	router, err := generator.NewRouterFromSettings(settings, cfg.DefaultModel)
	if err != nil {
		return nil, err
	}
	return generator.NewAgent(router, generator.AgentOptions{
		Logger:           logger,
		MaxResponseBytes: cfg.MaxResponseBytes,
	})
}

func openStore(cfg config.Storage) (store.Store, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		st, err := store.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open chat database: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func runPrompt(ctx context.Context, agent *generator.Agent, model, prompt string) error {
	reply, err := agent.Reply(ctx, model, nil, prompt, func(delta string) {
		fmt.Print(delta)
	})
	fmt.Println()
	if err != nil {
		return err
	}
	if reply.Text != reply.Raw {
		fmt.Printf("\n--- %s (%s) ---\n%s\n", reply.Outcome, reply.Decision.Reason, reply.Text)
	}
	return nil
}

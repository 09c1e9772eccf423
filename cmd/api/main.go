package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Wrseno/whatsapp-bot/internal/config"
	"github.com/Wrseno/whatsapp-bot/internal/handlers"
	"github.com/Wrseno/whatsapp-bot/internal/middleware"
	"github.com/Wrseno/whatsapp-bot/internal/repository"
	"github.com/Wrseno/whatsapp-bot/internal/services"
	"github.com/Wrseno/whatsapp-bot/internal/store"
	"github.com/Wrseno/whatsapp-bot/internal/webhook"
	"github.com/Wrseno/whatsapp-bot/pkg/logger"
)

const (
	Version = "1.0.0"
	Banner  = `
╔══════════════════════════════════════════════════════════╗
║                                                          ║
║        WhatsApp Session Gateway                          ║
║                    Version %s                            ║
║                                                          ║
╚══════════════════════════════════════════════════════════╝
`
)

func main() {
	fmt.Printf(Banner, Version)

	log := logger.New("[API] ", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	log.Info("Iniciando WhatsApp Session Gateway...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Falha ao carregar configuração: %v", err)
	}
	log.Info("Configuração carregada com sucesso")

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Falha ao abrir banco de metadados: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("Falha ao fechar banco: %v", err)
		}
	}()

	repo := repository.NewSessionRepository(db, log)
	if err := repo.Migrate(); err != nil {
		log.Fatalf("Falha ao migrar banco de metadados: %v", err)
	}

	credentials := store.NewCredentialStore(cfg.WhatsApp.SessionsDir, log)
	notifier := webhook.NewNotifier(cfg.Backend.BaseURL, cfg.Backend.WebhookTimeout, log)

	manager := services.NewManager(services.Options{
		Factory:           services.NewWhatsmeowFactory(credentials),
		Credentials:       credentials,
		Notifier:          notifier,
		Repository:        repo,
		Retry:             services.FixedDelay{Delay: cfg.WhatsApp.ReconnectDelay},
		HeartbeatInterval: cfg.WhatsApp.HeartbeatInterval,
		QRTerminal:        cfg.WhatsApp.QRTerminal,
		Logger:            log,
	})
	log.Infof("Manager inicializado (backend: %s)", cfg.Backend.BaseURL)

	restoreCtx, cancelRestore := context.WithCancel(context.Background())
	defer cancelRestore()
	go manager.RestoreSessions(restoreCtx)

	handler := handlers.NewBotHandler(manager, log)
	router := setupRouter(handler, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("Servidor escutando na porta %s", cfg.Server.Port)
		log.Infof("Health check disponível em: http://localhost:%s/health", cfg.Server.Port)

		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Erro no servidor: %v", err)
		}
	case sig := <-shutdown:
		log.Infof("Sinal de desligamento recebido: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		log.Info("Encerrando servidor...")
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("Erro ao encerrar servidor: %v", err)
			if err := server.Close(); err != nil {
				log.Errorf("Erro ao fechar servidor: %v", err)
			}
		}

		log.Info("Desconectando sessões...")
		manager.Shutdown()

		log.Info("Servidor encerrado com sucesso")
	}
}

func setupRouter(h *handlers.BotHandler, log *logger.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.LoggingMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.ContentTypeMiddleware(),
	)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	bot := router.PathPrefix("/bot").Subrouter()
	bot.HandleFunc("/create", h.CreateSession).Methods(http.MethodPost)
	bot.HandleFunc("/destroy", h.DestroySession).Methods(http.MethodPost)
	bot.HandleFunc("/sessions", h.ListSessions).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(h.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	return router
}

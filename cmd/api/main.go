package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/emotalk/backend/internal/config"
	"github.com/zhouzirui/emotalk/backend/internal/handler"
	"github.com/zhouzirui/emotalk/backend/internal/handler/frame"
	"github.com/zhouzirui/emotalk/backend/internal/model/persona"
	"github.com/zhouzirui/emotalk/backend/internal/service/ai"
	"github.com/zhouzirui/emotalk/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/emotalk/backend/internal/service/emotion"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			log.Fatalf("缺少远程模型凭证，服务无法启动: %v", err)
		}
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	history := chat.NewService()

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}

	relayService, err := ai.NewService(ctx, chatModel, history, personaStore, ai.Config{
		HistoryLimit:       cfg.Relay.HistoryLimit,
		MaxTokens:          cfg.Relay.MaxTokens,
		TokenDelay:         cfg.Relay.TokenDelay,
		DefaultPersonality: cfg.Relay.DefaultPersonality,
	})
	if err != nil {
		log.Fatalf("failed to initialize relay service: %v", err)
	}
	log.Println("Relay service initialized successfully")

	// 人脸情绪识别失败时不阻塞对话功能，upload_frame 返回 503。
	var classifier frame.Classifier
	if visionModel, err := cfg.AI.NewVisionModel(ctx); err != nil {
		log.Printf("warning: failed to create vision model: %v", err)
	} else if detector, err := emotionservice.NewVisionDetector(visionModel); err != nil {
		log.Printf("warning: failed to initialize face detector: %v", err)
	} else if c, err := emotionservice.NewClassifier(detector); err != nil {
		log.Printf("warning: failed to initialize frame classifier: %v", err)
	} else {
		classifier = c
		log.Println("Frame classifier enabled")
	}

	router := handler.NewRouter(handler.Options{
		Personas:      personaStore,
		Relay:         relayService,
		Frame:         classifier,
		FrameMaxBytes: cfg.Frame.MaxUploadBytes,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("emotalk backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

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

	"github.com/redis/go-redis/v9"

	"github.com/plonguo/portfolio-api/internal/ai"
	"github.com/plonguo/portfolio-api/internal/chat"
	"github.com/plonguo/portfolio-api/internal/commits"
	"github.com/plonguo/portfolio-api/internal/config"
	"github.com/plonguo/portfolio-api/internal/db"
	"github.com/plonguo/portfolio-api/internal/httpapi"
	"github.com/plonguo/portfolio-api/internal/httpapi/handlers"
	"github.com/plonguo/portfolio-api/internal/prompt"
	"github.com/plonguo/portfolio-api/internal/quota"
	"github.com/plonguo/portfolio-api/internal/store/rabbitmq"
	"github.com/plonguo/portfolio-api/internal/store/redisstore"
	"github.com/plonguo/portfolio-api/internal/verify"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := gdb.AutoMigrate(&commits.CacheEntry{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	limits := quota.Limits{
		MaxRequests: cfg.MaxRequestsPerHour,
		MaxTokens:   cfg.MaxTokensPerHour,
		Window:      cfg.RateLimitWindow,
	}
	quotaStore := newQuotaStore(cfg, limits)

	reg := ai.NewRegistry()
	params := ai.Params{MaxTokens: cfg.MaxCompletionTokens, Temperature: cfg.Temperature}
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model, params), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, params), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model, params), nil
	})

	assembler := prompt.NewAssemblerFromFile(cfg.SystemPromptFile, cfg.HistoryWindow)

	var reporter chat.UsageReporter
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit connect: %v", err)
		}
		defer pub.Close()
		reporter = &chat.QueueReporter{Pub: pub}
		log.Printf("usage reporting via queue=%s", cfg.RabbitQueue)
	} else {
		reporter = &chat.StoreReporter{Store: quotaStore}
	}

	chatSvc := chat.NewService(reg, assembler, cfg.AIProvider, "", reporter)

	gh := commits.NewGitHubClient("", cfg.GitHubToken)
	commitsSvc := commits.NewService(commits.NewRepo(gdb), gh, cfg.GitHubRepo, cfg.CommitsCacheTTL)

	turnstile := verify.NewTurnstile(cfg.TurnstileVerifyURL, cfg.TurnstileSecretKey)

	h := handlers.NewHandler(cfg, chatSvc, commitsSvc, quotaStore, turnstile)
	r := httpapi.NewRouter(cfg, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server started addr=%s provider=%s", srv.Addr, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// newQuotaStore prefers Redis so limits hold across instances; when Redis
// is unreachable at boot the process still comes up on the in-memory store.
func newQuotaStore(cfg config.Config, limits quota.Limits) quota.Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[Quota] redis unavailable addr=%s err=%v, using in-memory store", cfg.RedisAddr, err)
		_ = rdb.Close()
		return quota.NewMemoryStore(limits)
	}

	log.Printf("[Quota] redis connected addr=%s", cfg.RedisAddr)
	return redisstore.NewQuotaStore(rdb, limits)
}

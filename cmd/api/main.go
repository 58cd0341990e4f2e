package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ArowuTest/crm-campaign-backend/api/routes"
	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/config"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories/memory"
	mongorepo "github.com/ArowuTest/crm-campaign-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/crm-campaign-backend/internal/services"
	"github.com/ArowuTest/crm-campaign-backend/pkg/jwt"
	"github.com/ArowuTest/crm-campaign-backend/pkg/mongodb"
	"github.com/ArowuTest/crm-campaign-backend/pkg/ratelimit"
	"github.com/ArowuTest/crm-campaign-backend/pkg/vendor"
)

// repos is the set of repositories backing the services
type repos struct {
	users     repositories.UserRepository
	customers repositories.CustomerRepository
	orders    repositories.OrderRepository
	segments  repositories.AudienceSegmentRepository
	campaigns repositories.CampaignRepository
	logs      repositories.CommunicationLogRepository
}

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	// A missing .env file is fine; real deployments use the environment
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	if cfg.JWT.Secret == "" {
		slog.Error("JWT secret is not configured; set JWT_SECRET")
		os.Exit(1)
	}

	ctx := context.Background()

	var store repos
	var mongoClient *mongodb.Client
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		slog.Warn("Using in-memory storage; data is lost on restart")
		mem := memory.NewStore()
		store = repos{mem.Users, mem.Customers, mem.Orders, mem.Segments, mem.Campaigns, mem.Logs}
	default:
		mongoClient, err = mongodb.NewClient(ctx, cfg.MongoDB.URI, 10*time.Second)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		db := mongoClient.Database(cfg.MongoDB.Database)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}
		store = repos{
			users:     mongorepo.NewUserRepository(db),
			customers: mongorepo.NewCustomerRepository(db),
			orders:    mongorepo.NewOrderRepository(db),
			segments:  mongorepo.NewAudienceSegmentRepository(db),
			campaigns: mongorepo.NewCampaignRepository(db),
			logs:      mongorepo.NewCommunicationLogRepository(db),
		}
		slog.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)
	}

	tokens := jwt.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresIn)*time.Second)
	compiler := audience.NewCompiler(audience.WithMaxDepth(cfg.Campaign.MaxRuleDepth))

	audienceService := services.NewAudienceService(store.customers, store.segments, compiler)
	sender := vendor.NewClient(cfg.VendorSendURL(), nil, cfg.VendorTimeout())
	campaignService := services.NewCampaignService(store.campaigns, store.logs, audienceService, sender, services.CampaignOptions{
		CallbackURL:      cfg.VendorCallbackURL(),
		DispatchOnCreate: cfg.Campaign.DispatchOnCreate,
		SendTimeout:      cfg.VendorTimeout(),
		MaxInFlight:      cfg.Vendor.MaxInFlight,
	})
	simulator := vendor.NewSimulator(vendor.SimulatorConfig{
		SuccessRate: cfg.Vendor.SuccessRate,
		MinLatency:  time.Duration(cfg.Vendor.MinLatencyMs) * time.Millisecond,
		MaxLatency:  time.Duration(cfg.Vendor.MaxLatencyMs) * time.Millisecond,
		Timeout:     cfg.VendorTimeout(),
	}, nil, time.Now().UnixNano())

	deps := routes.Dependencies{
		Auth:      services.NewAuthService(store.users, tokens),
		Customers: services.NewCustomerService(store.customers),
		Orders:    services.NewOrderService(store.orders, store.customers),
		Audiences: audienceService,
		Campaigns: campaignService,
		Delivery:  services.NewDeliveryService(store.logs, store.campaigns),
		Vendor:    simulator,
		Tokens:    tokens,
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis is unreachable; rate limiting will fail open", "addr", cfg.Redis.Addr, "error", err)
		}
		deps.Limiter = ratelimit.New(redisClient, "api", cfg.RateLimit.Requests, cfg.RateLimitWindow())
	} else if cfg.RateLimit.Enabled {
		slog.Warn("Rate limiting enabled but REDIS_ADDR is empty; skipping")
	}

	router := routes.SetupRouter(cfg, deps)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shutdown(shutdownCtx, srv, campaignService, simulator)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			slog.Error("Error disconnecting from MongoDB", "error", err)
		}
	}
	slog.Info("Server exiting")
}

type drainer interface {
	Wait(ctx context.Context) error
}

// shutdown drains vendor calls and simulator callbacks while the listener
// still accepts them, then closes the server. Callbacks target this process
// when the vendor is self-hosted, so campaigns drain before the simulator.
func shutdown(ctx context.Context, srv *http.Server, campaigns, simulator drainer) {
	if err := campaigns.Wait(ctx); err != nil {
		slog.Warn("Vendor calls still in flight at shutdown", "error", err)
	}
	if err := simulator.Wait(ctx); err != nil {
		slog.Warn("Vendor callbacks still pending at shutdown", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

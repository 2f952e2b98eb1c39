package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/confirm"
	"github.com/dexgate/gateway/internal/connector/genericamm"
	"github.com/dexgate/gateway/internal/handler"
	"github.com/dexgate/gateway/internal/middleware"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/noncecache"
	"github.com/dexgate/gateway/internal/orchestrator"
	"github.com/dexgate/gateway/internal/pkg/logger"
	"github.com/dexgate/gateway/internal/quotecache"
	"github.com/dexgate/gateway/internal/repository"
	"github.com/dexgate/gateway/internal/service"
	"github.com/dexgate/gateway/internal/walletlock"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger.Init("info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Usage/risk store (A.9): Redis if configured, else in-memory.
	var usageRepo service.UsageRepo
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		rc, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to redis")
			redisClient = rc
			usageRepo = repository.NewRedisUsageRepo(rc)
		} else {
			logger.Error("failed to connect to redis, falling back to in-memory usage store", "error", err)
		}
	}
	if usageRepo == nil {
		usageRepo = service.NewRiskUsageStore()
	}

	// Durable client + audit store (A.6/A.7): Postgres if configured.
	var db *repository.DB
	var clientRepo service.ClientRepo
	var clientRepoCRUD service.ClientRepoCRUD
	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		d, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("connected to postgres")
			db = d
			pcr := repository.NewPostgresClientRepo(db)
			clientRepo = pcr
			clientRepoCRUD = pcr
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("failed to connect to postgres, clients/audit log will not persist", "error", err)
		}
	}
	if auditRepo == nil && redisClient != nil {
		auditRepo = repository.NewRedisAuditRepo(redisClient, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
	}

	// Idempotency store (A.8): Redis if configured, else single-process memory.
	var idempotencyStore middleware.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = repository.NewRedisIdempotencyStore(redisClient, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
	} else {
		idempotencyStore = middleware.NewInMemIdempotencyStore()
	}

	clientManager := service.NewClientManager(cfg, clientRepo)

	auditSvc, err := service.NewAuditService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("failed to initialize audit service: %v", err)
	}
	defer auditSvc.Close()

	riskEngine := service.NewRiskEngine(usageRepo)

	// C1/C2/C3/C5: per-process singletons shared by every chain binding.
	nonceTun := noncecache.Tunables{MaxNonceGap: cfg.Nonce.MaxNonceGap, MaxCacheAge: cfg.Nonce.MaxCacheAge()}
	nonces := noncecache.New(nonceTun)
	locks := walletlock.NewRegistry(cfg.Nonce.ReapInterval(), nonces)
	quotes := quotecache.New(0)
	classifier := orchestrator.NewClassifier(cfg.ErrorPatterns)
	confirmEngine := confirm.New(cfg.Confirm.PollingInterval(), cfg.Confirm.ConfirmationTimeout())

	orch := orchestrator.New(locks, nonces, quotes, classifier, confirmEngine, cfg.Confirm.PollingInterval(), cfg.Confirm.ApproveTimeout())

	gweiToWei := new(big.Float).SetFloat64(1e9)
	gasMaxWei := func(gwei float64) *big.Int {
		if gwei <= 0 {
			return nil
		}
		wei, _ := new(big.Float).Mul(big.NewFloat(gwei), gweiToWei).Int(nil)
		return wei
	}

	rpcByScope := make(map[string]chainrpc.RPCAdapter)
	for _, chain := range cfg.Chains {
		ethClient, err := ethclient.Dial(chain.RPCURL)
		if err != nil {
			log.Fatalf("failed to dial rpc for chain %s: %v", chain.Scope, err)
		}
		adapter, err := chainrpc.DialEVM(chain.RPCURL)
		if err != nil {
			log.Fatalf("failed to build rpc adapter for chain %s: %v", chain.Scope, err)
		}
		builder, err := genericamm.New(ethClient, big.NewInt(chain.ChainID))
		if err != nil {
			log.Fatalf("failed to build route builder for chain %s: %v", chain.Scope, err)
		}

		family := model.FamilySignatureHash
		if chain.Family != "signature-hash" {
			family = model.FamilyAccountNonce
		}

		envKey := fmt.Sprintf("GATEWAY_SIGNER_KEY_%s", strings.ToUpper(chain.Scope))
		signerKey := os.Getenv(envKey)
		var signer chainrpc.Signer
		if signerKey != "" {
			s, err := chainrpc.NewSoftwareSigner(signerKey)
			if err != nil {
				log.Fatalf("invalid signer key for chain %s (%s): %v", chain.Scope, envKey, err)
			}
			signer = s
		} else {
			logger.Error("no signer key configured for chain, swap execution will fail", "scope", chain.Scope, "env", envKey)
		}

		orch.RegisterChain(&orchestrator.ChainBinding{
			Scope:            chain.Scope,
			Family:           family,
			RPC:              adapter,
			Builder:          builder,
			Signer:           signer,
			GasMaxWei:        gasMaxWei(cfg.Gas.GasMaxGwei),
			GasMultiplierPct: cfg.Gas.GasMultiplierPct,
			ComputeUnits: map[string]uint64{
				"amm":       chain.ComputeUnitBudgetAMM,
				"clmm":      chain.ComputeUnitBudgetCLMM,
				"universal": chain.ComputeUnitBudgetUniversal,
			},
		})
		rpcByScope[chain.Scope] = adapter
	}

	swapHandler := handler.NewSwapHandler(orch, riskEngine)
	coordHandler := handler.NewCoordinationHandler(locks, nonces, rpcByScope, cfg.Nonce.DefaultLeaseTTL(), cfg.Nonce.MaxLeaseTTL())
	auditHandler := handler.NewAuditHandler(auditSvc)

	var clientHandler *handler.ClientHandler
	if clientRepoCRUD != nil {
		clientSvc := service.NewClientService(clientManager, clientRepoCRUD)
		clientHandler = handler.NewClientHandler(clientSvc)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "dexgate"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnlyMode))
	v1.Use(middleware.AuthMiddleware(cfg, clientManager))
	v1.Use(middleware.RateLimitMiddleware(clientManager))
	v1.Use(middleware.IdempotencyMiddleware(idempotencyStore))
	{
		v1.GET("/connectors/:dex/:poolType/quote-swap", swapHandler.QuoteSwap)
		v1.POST("/connectors/:dex/:poolType/execute-swap", swapHandler.ExecuteSwap)
		v1.POST("/connectors/:router/execute-quote", swapHandler.ExecuteQuote)

		v1.POST("/chains/:family/nonce/acquire", coordHandler.Acquire)
		v1.POST("/chains/:family/nonce/release", coordHandler.Release)
		v1.POST("/chains/:family/nonce/invalidate", coordHandler.Invalidate)
		v1.GET("/chains/:family/nonce/status", coordHandler.Status)

		v1.GET("/audit", auditHandler.List)
	}

	if clientHandler != nil {
		admin := r.Group("/v1/clients")
		admin.Use(middleware.AdminMiddleware(cfg))
		{
			admin.GET("", clientHandler.List)
			admin.GET("/:id", clientHandler.Get)
			admin.POST("", clientHandler.Create)
			admin.PUT("/:id", clientHandler.Update)
			admin.DELETE("/:id", clientHandler.Delete)
			admin.PUT("/:id/signer", clientHandler.UpdateSigner)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("dexgate gateway started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	locks.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	logger.Info("server exiting")
}

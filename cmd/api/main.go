package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/auth"
	"papertrade/internal/config"
	"papertrade/internal/db"
	"papertrade/internal/httpserver"
	"papertrade/internal/locks"
	"papertrade/internal/marketdata"
	"papertrade/internal/matching"
	"papertrade/internal/orders"
	"papertrade/internal/projection"
	"papertrade/internal/push"
	"papertrade/internal/recon"
	"papertrade/internal/settlement"
	"papertrade/internal/store"
	"papertrade/internal/symbols"
	"papertrade/internal/watch"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()

	orderStore := store.NewPgOrders(pool)
	positionStore := store.NewPgPositions(pool)
	walletStore := store.NewPgWallets(pool)
	leverageStore := store.NewPgLeverages(pool)
	hedgeStore := store.NewPgHedges(pool)
	userStore := store.NewPgUsers(pool)
	symbolStore := store.NewPgSymbols(pool)

	client := symbols.NewClient(cfg.MarketDataURL, log)
	symbolCache := symbols.NewCache(client, symbolStore, log)

	proj := projection.New()
	watchSet := watch.NewSet()
	lockMgr := locks.NewManager()
	prices := marketdata.NewPriceCache(rdb, client, log)
	intake := marketdata.NewIntake(rdb, watchSet, prices, lockMgr, log)
	watchCtl := watch.NewController(watchSet, intake)

	bus := push.NewBus()
	authSvc := auth.NewService(userStore, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	settleSvc := settlement.NewService(walletStore, positionStore, leverageStore, proj, watchCtl, lockMgr, bus, log)
	orderSvc := orders.NewService(authSvc, symbolCache, prices, orderStore, positionStore, walletStore, leverageStore, hedgeStore, settleSvc, proj, watchCtl, lockMgr, bus, log)
	engine := matching.NewEngine(proj, orderSvc, log)
	intake.SetEngine(engine)
	accountSvc := account.NewService(walletStore, leverageStore, hedgeStore, proj)

	reconSvc := recon.NewService(orderStore, positionStore, walletStore, leverageStore, hedgeStore, symbolCache, proj, watchCtl, log)
	if err := reconSvc.Run(ctx); err != nil {
		log.Fatal("reconciliation", zap.Error(err))
	}

	go intake.Run(ctx)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		OrderHandler:   orders.NewHandler(orderSvc),
		AccountHandler: account.NewHandler(accountSvc, authSvc),
		MarketHandler:  marketdata.NewHandler(client),
		WSHandler:      push.NewWSHandler(bus, authSvc, cfg.WebSocketOrigin, log),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server", zap.Error(err))
	}
}

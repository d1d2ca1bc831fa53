package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/httpserver"
	"anoncreds/internal/prover"
	"anoncreds/internal/revocation"
	"anoncreds/internal/store"
	"anoncreds/internal/verifier"
	"anoncreds/pkg/config"
	"anoncreds/pkg/logger"
	"anoncreds/pkg/trace"
)

type service interface {
	Close(ctx context.Context) error
}

func main() {
	var (
		wg                 = &sync.WaitGroup{}
		ctx                = context.Background()
		services           = make(map[string]service)
		serviceName string = "anoncreds"
	)

	cfg, err := config.New(ctx)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(serviceName, cfg.Common.Log.FolderPath, cfg.Common.Production)
	if err != nil {
		panic(err)
	}

	mainLog := log.New("main")

	tracer, err := trace.New(ctx, cfg, log, serviceName)
	if err != nil {
		panic(err)
	}

	var st store.Store
	var closeOrder []string
	if cfg.Store.Mongo.URI != "" {
		mongoStore, err := store.NewMongoStore(ctx, cfg.Store.Mongo.URI)
		if err != nil {
			panic(err)
		}
		services["store"] = mongoStore
		closeOrder = append(closeOrder, "store")
		st = mongoStore
	} else {
		st = store.NewMemoryStore()
	}

	tails := revocation.NewCachingTailsAccessor(revocation.StaticTailsAccessor{})

	proverSvc := prover.New(st, clcrypto.DefaultParams(), log)
	verifierSvc := verifier.New(tails, log)

	httpSvc, err := httpserver.New(ctx, cfg, log, tracer, proverSvc, verifierSvc)
	services["httpServer"] = httpSvc
	closeOrder = append(closeOrder, "httpServer")
	if err != nil {
		panic(err)
	}

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan

	mainLog.Info("HALTING SIGNAL!")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i := len(closeOrder) - 1; i >= 0; i-- {
		name := closeOrder[i]
		if err := services[name].Close(shutdownCtx); err != nil {
			mainLog.Error(err, "service shutdown", "serviceName", name)
		}
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		mainLog.Error(err, "tracer shutdown")
	}

	wg.Wait()

	mainLog.Info("Stopped")
}

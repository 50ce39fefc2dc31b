package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursepay/internal/catalog"
	"coursepay/internal/config"
	"coursepay/internal/email"
	"coursepay/internal/gateway"
	"coursepay/internal/httpapi"
	"coursepay/internal/kv"
	"coursepay/internal/promos"
	"coursepay/internal/services"
	"coursepay/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	kvStore, err := kv.Open(ctx, cfg.Store.Driver, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	if err != nil {
		log.Fatalf("kv open failed: %v", err)
	}
	defer kvStore.Close()

	if cfg.Webhook.AllowUnsigned {
		log.Printf("WARNING: webhook.allow_unsigned is enabled; unsigned deliveries will be processed")
	} else if cfg.Webhook.Secret == "" {
		log.Printf("WARNING: webhook.secret is empty; every webhook delivery will be rejected")
	}

	catalogPath := cfg.Catalog.Path
	if catalogPath == "" {
		catalogPath = "configs/courses.yaml"
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		log.Fatalf("catalog load failed: %v", err)
	}

	st := store.New(kvStore)
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.AccessToken)
	sender := email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	loader := promos.NewLoader(cfg.Promos.Source, time.Duration(cfg.Promos.CacheTTLSeconds)*time.Second)

	checkoutSvc := &services.CheckoutService{
		Store:       st,
		Gateway:     gw,
		AccessToken: cfg.Gateway.AccessToken,
		PublicURL:   cfg.Server.PublicURL,
		Currency:    cfg.Checkout.Currency,
	}
	webhookSvc := &services.WebhookService{
		Store:         st,
		Gateway:       gw,
		Sender:        sender,
		Secret:        cfg.Webhook.Secret,
		AllowUnsigned: cfg.Webhook.AllowUnsigned,
		AdminEmail:    cfg.Email.Admin,
		SiteName:      cfg.Email.SiteName,
		SiteURL:       cfg.Server.PublicURL,
		DebugRaw:      cfg.Gateway.DebugRaw,
	}
	orderSvc := &services.OrderService{
		Store:       st,
		RequirePaid: cfg.Checkout.RequirePaid,
	}

	h := httpapi.NewHandler(checkoutSvc, webhookSvc, orderSvc, loader, cat)
	srv := httpapi.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/config"
	"fpolysms.io/internal/httpapi"
	"fpolysms.io/internal/idp"
	"fpolysms.io/internal/mail"
	"fpolysms.io/internal/obs"
	"fpolysms.io/internal/store/pg"
	"fpolysms.io/internal/subject"
	"fpolysms.io/internal/tfa"
	"fpolysms.io/internal/token"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.DB.DSN == "" {
		log.Fatal("missing database DSN: set SMS_PG_DSN")
	}
	store, err := pg.Open(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	tokens, err := token.NewService(token.Config{
		Issuer:        cfg.Auth.Issuer,
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		TempSecret:    []byte(cfg.Auth.TempSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		TempTTL:       cfg.Auth.TempTTL,
	})
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	authOpts := []auth.Option{auth.WithFrontendURL(cfg.Front.URL)}
	if cfg.Mail.APIKey != "" {
		sender, err := mail.NewResendClient(cfg.Mail.APIKey)
		if err != nil {
			log.Fatalf("mail client: %v", err)
		}
		authOpts = append(authOpts, auth.WithMailer(sender, cfg.Mail.From))
	}

	authSvc, err := auth.NewService(store.Users(), tokens, tfa.NewService(cfg.TFA.Issuer), authOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	aclSvc, err := acl.NewService(store.ACL())
	if err != nil {
		log.Fatalf("acl service: %v", err)
	}
	subjectSvc, err := subject.NewService(store.Subjects())
	if err != nil {
		log.Fatalf("subject service: %v", err)
	}

	var google idp.Verifier
	if cfg.Google.ClientID != "" {
		google = idp.NewGoogleVerifier(cfg.Google.ClientID)
	}

	api := httpapi.New(cfg, httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Auth:     authSvc,
		ACL:      aclSvc,
		Subjects: subjectSvc,
		Tokens:   tokens,
		Google:   google,
	})

	srv := &http.Server{
		Addr:              cfg.App.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting %s %s on %s", cfg.App.Name, version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

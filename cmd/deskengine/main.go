package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"

	"options-deskv1/config"
	"options-deskv1/internal/broker"
	"options-deskv1/internal/deployment"
	"options-deskv1/internal/execution"
	"options-deskv1/internal/logger"
	"options-deskv1/internal/markethours"
	"options-deskv1/internal/metrics"
	"options-deskv1/internal/notification"
	redisstore "options-deskv1/internal/store/redis"
	"options-deskv1/pkg/fyersapi"
	"options-deskv1/pkg/kiteconnect"
	"options-deskv1/pkg/stoxkart"
)

// autoSquareOffMinute is when the desk flattens remaining longs on its own,
// a few minutes ahead of the 15:00 square-off cutoff.
const autoSquareOffMinute = 14*60 + 55

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[deskengine] starting...")

	cfg := config.Load()
	slogger := logger.Init("deskengine", slog.LevelInfo)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Order journal ----
	os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)
	journal, err := execution.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[deskengine] journal init failed: %v", err)
	}
	defer journal.Close()
	health.SetJournalOK(true)

	// ---- Redis session store (optional) ----
	sessions, err := redisstore.New(redisstore.SessionConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[deskengine] WARNING: redis init failed: %v (sessions will not persist)", err)
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		defer sessions.Close()
	}

	// ---- Primary broker ----
	var (
		primary  broker.Client
		adapters []broker.Adapter
	)
	if cfg.PaperTrading {
		log.Println("[deskengine] *** PAPER TRADING — no real orders will be placed ***")
		paper := broker.NewPaper(1_000_000, 150, 75, 5, time.Now().UnixNano())
		primary = paper
		adapters = append(adapters, paper)
	} else {
		kc := kiteconnect.NewClient(kiteconnect.Config{
			APIKey:    cfg.KiteAPIKey,
			APISecret: cfg.KiteAPISecret,
		})
		restoreOrLogin(ctx, kc, cfg, sessions)
		primary = broker.NewKiteClient(kc)
		adapters = append(adapters, broker.NewZerodhaAdapter(primary))
	}

	// ---- Fallback brokers (registered only when credentials exist) ----
	if cfg.FyersAppID != "" {
		fc := fyersapi.NewClient(fyersapi.Config{
			AppID:       cfg.FyersAppID,
			AccessToken: cfg.FyersAccessToken,
		})
		adapters = append(adapters, broker.NewFyersAdapter(&broker.FyersHTTP{API: fc}))
	}
	if cfg.StoxkartAPIKey != "" {
		sc := stoxkart.NewClient(stoxkart.Config{
			APIKey:      cfg.StoxkartAPIKey,
			AccessToken: cfg.StoxkartAccessToken,
		})
		adapters = append(adapters, broker.NewStoxkartAdapter(&broker.StoxkartHTTP{API: sc}))
	}

	// ---- Engines ----
	switcher := broker.NewSwitcher(cfg.DefaultBroker)
	notifier := buildNotifier(cfg)
	execEngine := execution.NewEngine(switcher, journal, prom, adapters...)
	execEngine.Notify = notifier
	deployEngine := deployment.NewEngine(primary, journal, prom)
	deployEngine.Notify = notifier

	health.SetBrokerOK(primary.IsConnected())
	for name, status := range execEngine.Status() {
		log.Printf("[deskengine] broker %s: configured=%v connected=%v", name, status.Configured, status.Connected)
	}
	slogger.Info("desk ready",
		slog.String("active_broker", switcher.Active()),
		slog.Int("brokers", len(adapters)),
		slog.Bool("paper", cfg.PaperTrading),
		slog.Duration("tick_interval", cfg.TickInterval))

	// ---- Liveness checks ----
	if sessions != nil {
		health.StartLivenessChecker(ctx, sessions.Client(), journal.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Tick loop: the external driver of every deployment plan ----
	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		squaredOff := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().In(markethours.IST)
				processed, err := deployEngine.Process("")
				if err != nil {
					log.Printf("[deskengine] tick failed: %v", err)
					continue
				}
				health.SetLastTickAt(now)
				if len(processed) > 0 {
					log.Printf("[deskengine] tick processed %d plans", len(processed))
				}

				// One automatic desk-wide square-off shortly before the
				// cutoff; manual calls earlier in the day are unaffected.
				minute := now.Hour()*60 + now.Minute()
				if !squaredOff && markethours.IsTradingDay(now) &&
					minute >= autoSquareOffMinute && !markethours.PastSquareOffCutoff(now) {
					confs, err := deployEngine.SquareOffActiveBuys()
					if err != nil {
						log.Printf("[deskengine] auto square-off failed: %v", err)
					} else {
						log.Printf("[deskengine] auto square-off placed %d reversals", len(confs))
						squaredOff = true
					}
				}
				if minute < autoSquareOffMinute {
					squaredOff = false
				}
			}
		}
	}()

	log.Printf("[deskengine] tick loop running every %v; deployment window %02d:%02d-%02d:%02d IST",
		cfg.TickInterval,
		markethours.DeployOpenHour, markethours.DeployOpenMinute,
		markethours.DeployCloseHour, markethours.DeployCloseMinute)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[deskengine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Println("[deskengine] shutdown complete.")
}

// buildNotifier picks the alert channel from config, falling back to log
// output.
func buildNotifier(cfg *config.Config) notification.Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		log.Println("[deskengine] plan alerts via telegram")
		return notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	if cfg.AlertWebhookURL != "" {
		log.Printf("[deskengine] plan alerts via webhook %s", cfg.AlertWebhookURL)
		return notification.NewWebhookNotifier(cfg.AlertWebhookURL)
	}
	return notification.NewLogNotifier()
}

// restoreOrLogin reuses a persisted Zerodha session when one exists, and
// otherwise runs the TOTP auto-login flow. The desk starts either way; a
// disconnected broker surfaces through /healthz and per-order errors.
func restoreOrLogin(ctx context.Context, kc *kiteconnect.Client, cfg *config.Config, sessions *redisstore.SessionStore) {
	if sessions != nil {
		token, err := sessions.LoadToken(ctx, "zerodha")
		if err != nil {
			log.Printf("[deskengine] session load failed: %v", err)
		} else if token != "" {
			kc.SetAccessToken(token)
			log.Println("[deskengine] restored zerodha session from redis")
			return
		}
	}

	if cfg.KiteUserID == "" || cfg.KitePassword == "" || cfg.KiteTOTPSecret == "" {
		log.Println("[deskengine] WARNING: no zerodha session and no login credentials; orders will fail until a token is provided")
		return
	}

	totpCode, err := totp.GenerateCode(cfg.KiteTOTPSecret, time.Now())
	if err != nil {
		log.Printf("[deskengine] TOTP generation failed: %v", err)
		return
	}
	requestToken, err := kc.AutoLogin(cfg.KiteUserID, cfg.KitePassword, totpCode)
	if err != nil {
		log.Printf("[deskengine] zerodha auto-login failed: %v", err)
		return
	}
	accessToken, err := kc.GenerateSession(requestToken)
	if err != nil {
		log.Printf("[deskengine] zerodha session exchange failed: %v", err)
		return
	}
	log.Println("[deskengine] zerodha session established")

	if sessions != nil {
		if err := sessions.SaveToken(ctx, "zerodha", accessToken); err != nil {
			log.Printf("[deskengine] session save failed: %v", err)
		}
	}
}

// README: serve command; runs the HTTP API, the Telegram bots and the session sweeper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tripdesk/internal/dialogue"
	httptransport "tripdesk/internal/http"
	"tripdesk/internal/infra"
	"tripdesk/internal/modules/usage"
	"tripdesk/internal/session"
	"tripdesk/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API, Telegram bots and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return serve(ctx, a)
	},
}

func serve(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	var (
		travellerBot *telegram.Bot
		notifier     dialogue.Notifier
		handler      = &lateHandler{}
	)
	if cfg.Telegram.Token != "" {
		b, err := telegram.NewBot(cfg.Telegram.Token, handler, cfg.HTTP.ChatTimeout, log)
		if err != nil {
			return err
		}
		travellerBot = b
	}

	var operatorBot *telegram.OperatorBot
	if cfg.Telegram.OperatorToken != "" {
		var traveller telegram.TravellerMessenger
		if travellerBot != nil {
			traveller = travellerBot
		}
		cmds := telegram.NewOperatorCommands(a.trips, traveller, log.Named("operator"))
		ob, err := telegram.NewOperatorBot(cfg.Telegram.OperatorToken, cmds, cfg.Telegram.OperatorChatID, log)
		if err != nil {
			return err
		}
		operatorBot = ob
		if cfg.Telegram.OperatorChatID != 0 {
			notifier = telegram.NewOperatorNotifier(ob.Tele(), cfg.Telegram.OperatorChatID)
		}
	} else if travellerBot != nil && cfg.Telegram.OperatorChatID != 0 {
		notifier = telegram.NewOperatorNotifier(travellerBot.Tele(), cfg.Telegram.OperatorChatID)
	}
	if notifier == nil {
		log.Warn("operator notifications disabled; set telegram.operator_chat_id")
	}

	engine := a.newEngine(notifier)
	handler.engine = engine

	deps := httptransport.RouterDeps{
		Engine:      engine,
		Trips:       a.trips,
		ChatTimeout: cfg.HTTP.ChatTimeout,
	}
	if travellerBot != nil {
		deps.Traveller = travellerBot
	}
	if a.db != nil {
		deps.Quota = usage.NewService(usage.NewStore(a.db, cfg.Usage.MonthlyQuota))
	}
	if cfg.Operator.FirebaseProjectID != "" {
		v, err := infra.NewOperatorVerifier(ctx, infra.FirebaseOptions{
			ProjectID:       cfg.Operator.FirebaseProjectID,
			CredentialsFile: cfg.Operator.CredentialsFile,
			CheckRevoked:    cfg.Operator.CheckRevoked,
		})
		if err != nil {
			return fmt.Errorf("firebase init: %w", err)
		}
		deps.Verifier = v
	}

	gin.SetMode(gin.ReleaseMode)
	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.NewRouter(deps, log.Named("http")), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	if travellerBot != nil {
		g.Go(func() error { return travellerBot.Start(gctx) })
	}
	if operatorBot != nil {
		g.Go(func() error { return operatorBot.Start(gctx) })
	}
	if sw, ok := a.store.(session.Sweeper); ok {
		g.Go(func() error {
			session.RunSweeper(gctx, sw, cfg.Session.SweepInterval, cfg.Session.TTL, log.Named("sweeper"))
			return nil
		})
	}

	log.Info("tripdesk started",
		zap.String("nlu", cfg.NLU.Provider),
		zap.String("session", cfg.Session.Backend),
		zap.Bool("postgres", a.db != nil),
		zap.Bool("telegram", travellerBot != nil))
	return g.Wait()
}

// lateHandler lets the traveller bot be built before the engine, which needs the
// bot's notifier.
type lateHandler struct {
	engine *dialogue.Engine
}

func (h *lateHandler) Handle(ctx context.Context, turn dialogue.Turn) (dialogue.Reply, error) {
	return h.engine.Handle(ctx, turn)
}

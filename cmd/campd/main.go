// Command campd runs the camp engine as a long-lived process: it opens the
// SQLite-backed store and periodically drives the time-based lifecycle
// transitions (signup close, failed-camp refunds, challenge close) that no
// caller triggers directly.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/louisbranch/summit.camp/internal/camp/domain"
	"github.com/louisbranch/summit.camp/internal/camp/service"
	"github.com/louisbranch/summit.camp/internal/escrow"
	"github.com/louisbranch/summit.camp/internal/identity"
	"github.com/louisbranch/summit.camp/internal/platform/config"
	"github.com/louisbranch/summit.camp/internal/platform/errors"
	"github.com/louisbranch/summit.camp/internal/platform/otel"
	"github.com/louisbranch/summit.camp/internal/storage/sqlite"
)

type campdConfig struct {
	DBPath        string        `env:"SUMMIT_CAMP_DB_PATH" envDefault:"summit-camp.db"`
	SweepInterval time.Duration `env:"SUMMIT_CAMP_SWEEP_INTERVAL" envDefault:"30s"`
	PenaltyPolicy string        `env:"SUMMIT_CAMP_PENALTY_POLICY" envDefault:"organizer"`
	TokenSecret   string        `env:"SUMMIT_CAMP_TOKEN_SECRET"`
	TokenTTL      time.Duration `env:"SUMMIT_CAMP_TOKEN_TTL" envDefault:"1h"`
	OrganizerAddr string        `env:"SUMMIT_CAMP_ORGANIZER"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("campd exited: error=%v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg campdConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}

	shutdownTracing, err := otel.Setup(ctx, "campd")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("otel shutdown failed: error=%v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("store close failed: error=%v", err)
		}
	}()

	svc := service.NewService(store, escrow.UnlimitedBalances{})
	if err := svc.SetPenaltyPolicy(escrow.PenaltyPolicy(cfg.PenaltyPolicy)); err != nil {
		return err
	}

	token, err := bootstrapToken(cfg)
	if err != nil {
		return err
	}
	if token != "" {
		log.Printf("organizer bootstrap token minted: organizer=%s ttl=%s token=%s",
			cfg.OrganizerAddr, cfg.TokenTTL, token)
	}

	log.Printf("campd started: db=%s sweep_interval=%s penalty_policy=%s",
		cfg.DBPath, cfg.SweepInterval, cfg.PenaltyPolicy)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("campd stopping: reason=%v", ctx.Err())
			return nil
		case <-ticker.C:
			sweep(ctx, svc)
		}
	}
}

// bootstrapToken mints a caller token for the configured organizer so an
// operator can drive organizer operations against a fresh deployment without
// a frontend. Returns an empty token when token signing or the organizer
// address is not configured.
func bootstrapToken(cfg campdConfig) (string, error) {
	if cfg.TokenSecret == "" || cfg.OrganizerAddr == "" {
		return "", nil
	}
	organizer, err := identity.ParseAddress(cfg.OrganizerAddr)
	if err != nil {
		return "", err
	}
	authority := identity.NewTokenAuthority([]byte(cfg.TokenSecret), cfg.TokenTTL, nil)
	return authority.Mint(organizer)
}

// sweep advances every camp whose next transition is due. Per-camp failures
// are logged and skipped so one stuck camp cannot stall the rest.
func sweep(ctx context.Context, svc *service.Service) {
	camps, err := svc.ListCamps(ctx)
	if err != nil {
		log.Printf("sweep list failed: error=%v", err)
		return
	}
	for _, camp := range camps {
		switch camp.State {
		case domain.StateSignup:
			evaluated, err := svc.EvaluateSignupClose(ctx, camp.ID)
			if err != nil {
				if errors.CodeOf(err) != errors.CodePrematureEvaluation {
					log.Printf("signup close failed: camp_id=%s error=%v", camp.ID, err)
				}
				continue
			}
			if evaluated.State != camp.State {
				log.Printf("signup closed: camp_id=%s state=%s", camp.ID, evaluated.State)
			}
		case domain.StateFailed:
			if camp.RefundState == domain.RefundCompleted {
				continue
			}
			refunded, err := svc.RefundAll(ctx, camp.ID)
			if err != nil {
				log.Printf("refund sweep failed: camp_id=%s error=%v", camp.ID, err)
				continue
			}
			log.Printf("refund sweep done: camp_id=%s refunded=%d", camp.ID, len(refunded))
		case domain.StateChallenge:
			closed, err := svc.CloseCamp(ctx, camp.ID)
			if err != nil {
				if errors.CodeOf(err) != errors.CodeInvalidState {
					log.Printf("close failed: camp_id=%s error=%v", camp.ID, err)
				}
				continue
			}
			if closed.State == domain.StateCompleted {
				log.Printf("camp closed: camp_id=%s", camp.ID)
			}
		}
	}
}

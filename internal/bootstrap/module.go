package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"janmat/internal/bootstrap/config"
	"janmat/internal/bootstrap/database"
	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/parse"
	"janmat/internal/httpapi"
	"janmat/internal/infrastructure/extractor/hosted"
	"janmat/internal/infrastructure/extractor/local"
	"janmat/internal/infrastructure/extractor/rule"
	"janmat/internal/infrastructure/persistence/sqlite/repository"
	"janmat/internal/infrastructure/persistence/sqlite/uow"
	"janmat/internal/infrastructure/ratelimit"
	"janmat/internal/infrastructure/snapshot"
	"janmat/internal/ports"
	"janmat/internal/usecase/geoquery"
	"janmat/internal/usecase/learning"
	"janmat/internal/usecase/parsing"
	"janmat/internal/usecase/vocabadmin"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(repository.NewReferenceRepository, fx.As(new(ports.ReferenceStore))),
		fx.Annotate(repository.NewGeoNodeRepository, fx.As(new(ports.GeoRepository))),
		fx.Annotate(repository.NewEventRepository, fx.As(new(ports.ParsedEventRepository))),
		fx.Annotate(repository.NewCorrectionEventRepository, fx.As(new(ports.CorrectionRepository))),
		fx.Annotate(uow.NewUnitOfWork, fx.As(new(ports.UnitOfWork))),
		fx.Annotate(snapshot.NewProvider, fx.As(new(ports.SnapshotProvider))),
	),
	fx.Provide(provideExtractors),
	fx.Provide(provideParsingService),
	fx.Provide(provideLearningService),
	fx.Provide(geoquery.NewService),
	fx.Provide(vocabadmin.NewService),
	fx.Provide(provideHTTPServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

// provideExtractors assembles the enabled layers. The rule layer is always
// present; the model layers follow configuration so the engine degrades to
// whatever is available.
func provideExtractors(cfg config.Config, snapshots ports.SnapshotProvider) []ports.Extractor {
	extractors := []ports.Extractor{rule.New(snapshots)}

	if cfg.Local.Enabled {
		extractors = append(extractors, local.New(local.Options{
			BaseURL: cfg.Local.BaseURL,
			Model:   cfg.Local.Model,
			Timeout: cfg.Local.Timeout(),
		}, snapshots))
	}

	if cfg.Hosted.Enabled {
		bucket := ratelimit.NewBucket(cfg.Hosted.RequestsPerMinute, nil)
		extractors = append(extractors, hosted.New(hosted.Options{
			APIKey:       cfg.Hosted.APIKey,
			BaseURL:      cfg.Hosted.BaseURL,
			Model:        cfg.Hosted.Model,
			Timeout:      cfg.Hosted.Timeout(),
			MaxRetries:   cfg.Hosted.MaxRetries,
			QuotaCeiling: cfg.Hosted.QuotaCeiling,
			WaitForSlot:  cfg.Hosted.WaitForSlot,
		}, bucket, snapshots))
	}

	return extractors
}

func provideParsingService(cfg config.Config, extractors []ports.Extractor, snapshots ports.SnapshotProvider, events ports.ParsedEventRepository) *parsing.Service {
	return parsing.NewService(extractors, snapshots, events, parsing.Options{
		Settings: parse.Settings{
			ReviewThreshold: cfg.Consensus.ReviewThreshold,
			HighConfidence:  cfg.Consensus.HighConfidence,
			MajorityPenalty: cfg.Consensus.MajorityPenalty,
			FallbackPenalty: cfg.Consensus.FallbackPenalty,
		},
		Workers: cfg.Batch.Workers,
	})
}

func provideHTTPServer(
	cfg config.Config,
	parser *parsing.Service,
	reviews *learning.Service,
	queries *geoquery.Service,
	vocab *vocabadmin.Service,
) *httpapi.Server {
	return httpapi.NewServer(parser, reviews, queries, vocab, httpapi.Options{Addr: cfg.Server.Addr})
}

func provideLearningService(
	cfg config.Config,
	refs ports.ReferenceStore,
	corrections ports.CorrectionRepository,
	events ports.ParsedEventRepository,
	snapshots ports.SnapshotProvider,
	unit ports.UnitOfWork,
) *learning.Service {
	return learning.NewService(refs, corrections, events, snapshots, unit, cfg.Learning.PromotionThreshold)
}

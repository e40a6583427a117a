// Package app wires configuration, storage, external clients and the
// pipeline services. The HTTP server and the operator CLI share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"golden-seed/config"
	"golden-seed/dictionary"
	"golden-seed/models"
	"golden-seed/providers"
	"golden-seed/providers/clinicaltrials"
	"golden-seed/providers/opsin"
	"golden-seed/providers/pubchem"
	"golden-seed/repository"
	"golden-seed/services"
	"golden-seed/storage"
)

// Clients bundles the external services the pipeline reads from.
type Clients struct {
	Registry  providers.Registry
	Compounds providers.CompoundService
	Parser    providers.NameParser
}

// DefaultClients returns the HTTP clients for the configured endpoints.
func DefaultClients(cfg *config.Config, log *zap.Logger) Clients {
	return Clients{
		Registry:  clinicaltrials.NewFetcher(cfg, log),
		Compounds: pubchem.NewFetcher(cfg, log),
		Parser:    opsin.NewFetcher(cfg, log),
	}
}

// App holds one fully wired pipeline.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  repository.Store
	Dict   *dictionary.Dictionaries

	Collector *services.CollectorService
	Extractor *services.ExtractorService
	Chemistry *services.ChemistryService
	Review    *services.ReviewService
	Promotion *services.PromotionService
	Trend     *services.TrendService

	// Archive is nil when no snapshot bucket is configured.
	Archive *storage.SnapshotArchive
}

// New opens the configured store, seeds reference data and wires the services.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	SeedDefaultLinkers(ctx, store, log)

	var archive *storage.SnapshotArchive
	if cfg.ArchiveEnabled() {
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("S3 client creation failed: %w", err)
		}
		archive = storage.NewSnapshotArchive(client, cfg)
	}
	return Build(cfg, store, DefaultClients(cfg, log), archive, log)
}

// Build wires the services over an existing store and client set.
func Build(cfg *config.Config, store repository.Store, clients Clients, archive *storage.SnapshotArchive, log *zap.Logger) (*App, error) {
	dict := dictionary.Default()
	resolver, err := services.NewStructureResolver(cfg, clients.Compounds, clients.Parser, log)
	if err != nil {
		return nil, err
	}
	var archiver services.Archiver
	if archive != nil {
		archiver = archive
	}
	return &App{
		Config:    cfg,
		Logger:    log,
		Store:     store,
		Dict:      dict,
		Collector: services.NewCollectorService(cfg, store, clients.Registry, dict, log),
		Extractor: services.NewExtractorService(cfg, store, dict, log),
		Chemistry: services.NewChemistryService(cfg, store, resolver, dict, log),
		Review:    services.NewReviewService(store, log),
		Promotion: services.NewPromotionService(store, archiver, log),
		Trend:     services.NewTrendService(store, log),
		Archive:   archive,
	}, nil
}

// OpenStore connects the backend selected by STORE_BACKEND.
func OpenStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Successfully connected to golden database.")

	store := repository.NewGormStore(db)
	log.Info("Running database auto-migration...")
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}
	return store, nil
}

// DefaultLinkers is the reference linker library installed on first start.
var DefaultLinkers = []models.LinkerReference{
	{Name: "mc-vc-PABC", Family: "protease-cleavable dipeptide", Cleavable: true,
		SMILES: "O=C(CCCCCN1C(=O)C=CC1=O)N[C@@H](C(C)C)C(=O)N[C@@H](CCCNC(N)=O)C(=O)Nc1ccc(CO)cc1"},
	{Name: "GGFG", Family: "protease-cleavable tetrapeptide", Cleavable: true,
		SMILES: "NCC(=O)NCC(=O)N[C@@H](Cc1ccccc1)C(=O)NCC(=O)O"},
	{Name: "SPDB", Family: "cleavable disulfide", Cleavable: true,
		SMILES: "O=C(CCCSSc1ccccn1)ON1C(=O)CCC1=O"},
	{Name: "hydrazone", Family: "acid-labile hydrazone", Cleavable: true,
		SMILES: "CC(=O)c1ccc(OCCCC(=O)O)cc1"},
	{Name: "SMCC", Family: "non-cleavable thioether",
		SMILES: "O=C(ON1C(=O)CCC1=O)C1CCC(CN2C(=O)C=CC2=O)CC1"},
	{Name: "mc", Family: "non-cleavable maleimidocaproyl",
		SMILES: "O=C(O)CCCCCN1C(=O)C=CC1=O"},
}

// SeedDefaultLinkers installs DefaultLinkers entries that are missing.
func SeedDefaultLinkers(ctx context.Context, store repository.Store, log *zap.Logger) {
	n, err := store.SeedLinkers(ctx, DefaultLinkers)
	if err != nil {
		log.Warn("Failed to seed default linker library", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("Default linker library seeded.", zap.Int("inserted", n))
	}
}

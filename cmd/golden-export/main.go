package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"golden-seed/app"
	"golden-seed/config"
	"golden-seed/repository"
	"golden-seed/storage"
)

const exportPrefix = "exports/"

type ExportConfig struct {
	KeepExports int `envconfig:"KEEP_EXPORTS" default:"4"`
	PageSize    int `envconfig:"EXPORT_PAGE_SIZE" default:"200"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starting golden snapshot export...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}
	if !cfg.ArchiveEnabled() {
		logging.Fatal("SNAPSHOT_S3_BUCKET is required for exports")
	}
	var exportCfg ExportConfig
	if err := envconfig.Process("", &exportCfg); err != nil {
		logging.Fatal("Export config load error", zap.Error(err))
	}

	ctx := context.Background()
	store, err := app.OpenStore(cfg, logging)
	if err != nil {
		logging.Fatal("Store setup failed", zap.Error(err))
	}

	// 1. Snapshots als gzip-JSONL schreiben
	var buf bytes.Buffer
	count, err := writeExport(ctx, store, &buf, exportCfg.PageSize)
	if err != nil {
		logging.Fatal("Failed to build export", zap.Error(err))
	}

	// 2. Nach S3 hochladen
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	archive := storage.NewSnapshotArchive(client, cfg)
	key := exportKey(time.Now())
	link, err := archive.Upload(ctx, key, buf.Bytes(), "application/gzip")
	if err != nil {
		logging.Fatal("Failed to upload export", zap.Error(err))
	}
	logging.Info("Export uploaded", zap.String("link", link), zap.Int("snapshots", count))

	// 3. Alte Exporte rotieren
	deleted, err := archive.Rotate(ctx, exportPrefix, exportCfg.KeepExports)
	if err != nil {
		logging.Fatal("Failed to rotate old exports", zap.Error(err))
	}
	logging.Info("Export completed", zap.Strings("deleted", deleted))
}

func exportKey(now time.Time) string {
	return fmt.Sprintf("%sgolden-%s.jsonl.gz", exportPrefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

// writeExport streams every final snapshot as one gzip-compressed JSON line.
func writeExport(ctx context.Context, store repository.Store, w io.Writer, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = 200
	}
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	count := 0
	for offset := 0; ; offset += pageSize {
		page, err := store.ListSnapshots(ctx, pageSize, offset)
		if err != nil {
			return count, err
		}
		for i := range page {
			if err := enc.Encode(&page[i]); err != nil {
				return count, err
			}
			count++
		}
		if len(page) < pageSize {
			break
		}
	}
	if err := gz.Close(); err != nil {
		return count, err
	}
	return count, nil
}

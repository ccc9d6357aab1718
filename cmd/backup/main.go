package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"wikicite/config"
	"wikicite/storage"
)

const backupPrefix = "backup-"

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	logging.Info("Starte Backup-Prozess...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	if cfg.DBDriver != "postgres" {
		logging.Fatal("Backups werden nur für PostgreSQL unterstützt", zap.String("driver", cfg.DBDriver))
	}
	if cfg.BackupBucket == "" || !cfg.S3Enabled() {
		logging.Fatal("BACKUP_S3_BUCKET und S3-Zugangsdaten sind erforderlich")
	}

	ctx := context.Background()

	// 1. Datenbank-Dump erstellen
	dumpData, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	// 2. S3-Client erstellen
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	// 3. Backup nach S3 hochladen
	fileName := fmt.Sprintf("%s%s.sql.gz", backupPrefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := storage.UploadFile(ctx, s3Client, cfg, cfg.BackupBucket, fileName, bytes.NewReader(dumpData))
	if err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup erfolgreich hochgeladen", zap.String("link", link), zap.Int("bytes", len(dumpData)))

	// 4. Alte Backups rotieren
	if err := rotateBackups(ctx, s3Client, cfg.BackupBucket, cfg.KeepBackups, logging); err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}

	logging.Info("Backup-Prozess erfolgreich abgeschlossen.")
}

func createDump(ctx context.Context, cfg *config.Config) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gzipTo(&buf, stdout); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipTo(dst io.Writer, src io.Reader) error {
	gzipWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzipWriter, src); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func rotateBackups(ctx context.Context, client storage.ObjectAPI, bucket string, keep int, logging *zap.Logger) error {
	objects, err := storage.ListObjects(ctx, client, bucket, backupPrefix)
	if err != nil {
		return err
	}

	expired := expiredBackups(objects, keep)
	if len(expired) == 0 {
		logging.Info("Keine Rotation nötig", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return nil
	}

	var errs []error
	for _, obj := range expired {
		logging.Info("Lösche altes Backup", zap.String("key", obj.Key))
		if err := storage.DeleteObject(ctx, client, bucket, obj.Key); err != nil {
			logging.Error("Fehler beim Löschen", zap.String("key", obj.Key), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// expiredBackups liefert alle Backups außer den keep neuesten.
func expiredBackups(objects []storage.S3Object, keep int) []storage.S3Object {
	if keep < 1 {
		keep = 1
	}
	if len(objects) <= keep {
		return nil
	}
	sorted := append([]storage.S3Object(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	return sorted[keep:]
}

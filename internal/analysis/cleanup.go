package analysis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/datastore"
	"github.com/ando01/BirdView/internal/logger"
	"github.com/ando01/BirdView/internal/storage"
)

// Cleanup runs a single retention sweep over the media tree and the
// detections table. retentionDays overrides the configured value when > 0.
func Cleanup(ctx context.Context, settings *conf.Settings, retentionDays int, w io.Writer) error {
	if retentionDays <= 0 {
		retentionDays = settings.Storage.RetentionDays
	}
	if retentionDays <= 0 {
		_, err := fmt.Fprintln(w, "retention disabled, nothing to do")
		return err
	}

	store := datastore.New(settings, nil)
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			GetLogger().Warn("failed to close datastore", logger.Error(err))
		}
	}()

	media, err := storage.New(storage.Options{Root: settings.Storage.Path, Quality: settings.Storage.SnapshotQuality})
	if err != nil {
		return err
	}
	return sweep(ctx, media, store, retentionDays, time.Now(), w)
}

func sweep(ctx context.Context, media *storage.Store, pruner storage.RowPruner, days int, now time.Time, w io.Writer) error {
	res, err := media.Sweep(ctx, days, pruner, now)
	for _, dir := range res.RemovedDirs {
		fmt.Fprintf(w, "removed %s\n", dir)
	}
	fmt.Fprintf(w, "%d directories removed, %d detections deleted (older than %d days)\n",
		len(res.RemovedDirs), res.RowsDeleted, days)
	return err
}

// Command bazaar-blobput writes files through the configured object storage
// and prints one public locator per line
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store"
	"bazaar/internal/platform/store/blob"
)

func main() {
	folder := flag.String("folder", "misc", "destination folder under the uploads root")
	flag.Parse()

	logger.Init(logger.FromEnv())
	l := logger.Get()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: bazaar-blobput [-folder name] file...")
		os.Exit(2)
	}

	uploads := make([]blob.Upload, 0, flag.NArg())
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			l.Fatal().Err(err).Str("path", path).Msg("read failed")
		}
		uploads = append(uploads, blob.Upload{Filename: filepath.Base(path), Data: data})
	}

	cfg := store.ConfigFromEnv(config.New())
	cfg.DB.Enabled = false
	cfg.Cache.Enabled = false
	cfg.Blob.Enabled = true

	ctx := context.Background()
	st, err := store.Open(ctx, cfg, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() { _ = st.Close(ctx) }()

	objs, err := st.Blob.StoreMany(ctx, uploads, *folder)
	for _, o := range objs {
		fmt.Println(o.URL)
	}
	if err != nil {
		var be *blob.BatchError
		if errors.As(err, &be) {
			fmt.Fprintf(os.Stderr, "upload %d (%s) failed: %v\n", be.Index, be.Filename, be.Err)
		} else {
			fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		}
		_ = st.Close(ctx)
		os.Exit(1)
	}
}

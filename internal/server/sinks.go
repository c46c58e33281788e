package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/preston-bernstein/oddsharvester/internal/config"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
	"github.com/preston-bernstein/oddsharvester/internal/orchestrator"
	"github.com/preston-bernstein/oddsharvester/internal/storage"
	"github.com/preston-bernstein/oddsharvester/internal/storage/pgstore"
	"github.com/preston-bernstein/oddsharvester/internal/storage/s3store"
)

type sinkComponents struct {
	sink    orchestrator.Sink
	local   *storage.Local
	closers []func()
}

// Overridable in tests so remote backends are never dialled.
var (
	newS3Store = func(ctx context.Context, cfg s3store.Config) (orchestrator.Sink, error) {
		return s3store.New(ctx, cfg)
	}
	newPGStore = func(ctx context.Context, cfg pgstore.Config) (orchestrator.Sink, func(), error) {
		st, err := pgstore.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
)

func buildSinks(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (sinkComponents, error) {
	kinds, err := storage.ParseKinds(cfg.Kinds)
	if err != nil {
		return sinkComponents{}, err
	}

	var (
		out   sinkComponents
		sinks []orchestrator.Sink
	)
	fail := func(err error) (sinkComponents, error) {
		for _, c := range out.closers {
			c()
		}
		return sinkComponents{}, err
	}

	for _, kind := range kinds {
		switch kind {
		case storage.KindLocal:
			local, err := storage.NewLocal(storage.LocalConfig{
				Path:          cfg.LocalPath,
				Format:        storage.Format(cfg.Format),
				RetentionDays: cfg.RetentionDays,
			})
			if err != nil {
				return fail(fmt.Errorf("local storage: %w", err))
			}
			out.local = local
			sinks = append(sinks, local)
		case storage.KindRemote:
			remote, err := newS3Store(ctx, s3store.Config{
				Bucket:    cfg.S3.Bucket,
				Region:    cfg.S3.Region,
				Endpoint:  cfg.S3.Endpoint,
				AccessKey: cfg.S3.AccessKey,
				SecretKey: cfg.S3.SecretKey,
				Prefix:    cfg.S3.Prefix,
				PathStyle: cfg.S3.PathStyle,
			})
			if err != nil {
				return fail(fmt.Errorf("remote storage: %w", err))
			}
			sinks = append(sinks, remote)
		case storage.KindPostgres:
			pg, closer, err := newPGStore(ctx, pgstore.Config{DSN: cfg.PostgresDSN})
			if err != nil {
				return fail(fmt.Errorf("postgres storage: %w", err))
			}
			out.closers = append(out.closers, closer)
			sinks = append(sinks, pg)
		}
		logging.Info(logger, "storage enabled", logging.FieldSink, string(kind))
	}
	out.sink = storage.NewFanout(sinks...)
	return out, nil
}

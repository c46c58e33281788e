package server

import (
	"context"
	"errors"
	"testing"

	"github.com/preston-bernstein/oddsharvester/internal/config"
	"github.com/preston-bernstein/oddsharvester/internal/orchestrator"
	"github.com/preston-bernstein/oddsharvester/internal/storage"
	"github.com/preston-bernstein/oddsharvester/internal/storage/pgstore"
	"github.com/preston-bernstein/oddsharvester/internal/storage/s3store"
	"github.com/preston-bernstein/oddsharvester/internal/teststubs"
)

func stubRemoteSinks(t *testing.T, s3Err, pgErr error) (*int, *s3store.Config) {
	t.Helper()
	origS3, origPG := newS3Store, newPGStore
	t.Cleanup(func() {
		newS3Store, newPGStore = origS3, origPG
	})

	closed := 0
	var gotS3 s3store.Config
	newS3Store = func(_ context.Context, cfg s3store.Config) (orchestrator.Sink, error) {
		gotS3 = cfg
		if s3Err != nil {
			return nil, s3Err
		}
		return &teststubs.StubSink{SinkName: "remote"}, nil
	}
	newPGStore = func(context.Context, pgstore.Config) (orchestrator.Sink, func(), error) {
		if pgErr != nil {
			return nil, nil, pgErr
		}
		return &teststubs.StubSink{SinkName: "postgres"}, func() { closed++ }, nil
	}
	return &closed, &gotS3
}

func TestBuildSinksLocalOnly(t *testing.T) {
	cfg := config.Defaults().Storage
	cfg.LocalPath = t.TempDir()

	out, err := buildSinks(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.local == nil {
		t.Fatal("expected local store")
	}
	if _, ok := out.sink.(*storage.Local); !ok {
		t.Fatalf("expected a lone local sink, got %T", out.sink)
	}
}

func TestBuildSinksFansOutToEveryKind(t *testing.T) {
	closed, gotS3 := stubRemoteSinks(t, nil, nil)

	cfg := config.Defaults().Storage
	cfg.Kinds = "local,remote,postgres"
	cfg.LocalPath = t.TempDir()
	cfg.S3.Bucket = "odds"
	cfg.S3.Prefix = "runs"
	cfg.PostgresDSN = "postgres://localhost/odds"

	out, err := buildSinks(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.sink.Name(); got != "local+remote+postgres" {
		t.Fatalf("unexpected fanout name %q", got)
	}
	if gotS3.Bucket != "odds" || gotS3.Prefix != "runs" {
		t.Fatalf("unexpected s3 config %+v", *gotS3)
	}
	if len(out.closers) != 1 {
		t.Fatalf("expected postgres closer, got %d", len(out.closers))
	}
	out.closers[0]()
	if *closed != 1 {
		t.Fatal("expected postgres pool to close")
	}
}

func TestBuildSinksClosesEarlierBackendsOnFailure(t *testing.T) {
	closed, _ := stubRemoteSinks(t, errors.New("no bucket"), nil)

	cfg := config.Defaults().Storage
	cfg.Kinds = "postgres,remote"
	cfg.PostgresDSN = "postgres://localhost/odds"

	if _, err := buildSinks(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected remote storage error")
	}
	if *closed != 1 {
		t.Fatalf("expected postgres to be closed after failure, got %d", *closed)
	}
}

func TestBuildSinksRejectsUnknownKind(t *testing.T) {
	cfg := config.Defaults().Storage
	cfg.Kinds = "local,tape"
	if _, err := buildSinks(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected unknown kind error")
	}
}

// Package janus is the embeddable resource engine: HTTP-verb semantics over
// content-addressed chunked storage, with per-resource, per-method role
// authorization. The Engine owns the storage stack and the lifecycle of its
// components; requests enter through Handle.
package janus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janus-web/janus-db/internal/bytestore"
	"github.com/janus-web/janus-db/internal/keyValStore"
	"github.com/janus-web/janus-db/pkg/chunker"
	"github.com/janus-web/janus-db/pkg/chunkindex"
	"github.com/janus-web/janus-db/pkg/headerstore"
	"github.com/janus-web/janus-db/pkg/ledger"
	"github.com/janus-web/janus-db/pkg/logging"
	"github.com/janus-web/janus-db/pkg/permission"
	"github.com/janus-web/janus-db/pkg/protocol"
	"github.com/janus-web/janus-db/pkg/resourcestore"
	workerpool "github.com/janus-web/janus-db/pkg/workerPool"
)

var (
	ErrNotStarted = errors.New("janus: engine not started")
	ErrClosed     = errors.New("janus: engine closed")
)

// Config configures the engine instance. Only Paths[0] is used at the
// moment; future versions may use multiple paths for sharding or tiering.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is a free-space threshold for on-disk operations.
	MinimumFreeGB uint
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
	// Secret seals chunk bytes at rest. It must stay stable across restarts
	// or previously stored content becomes unreadable.
	Secret string

	// ChunkMode and ChunkSize tune how payloads are cut into chunks.
	// Zero values select fixed-size chunking at the default slot size.
	ChunkMode chunker.Mode
	ChunkSize int

	// Workers sizes the shared worker pool. Zero picks a CPU-based default.
	Workers int

	// PricePerKiB is the per-started-KiB chunk price of the built-in ledger.
	// Zero makes all writes free. Ignored when Ledger is set.
	PricePerKiB uint64

	// Roles optionally replaces the built-in in-memory role store, for
	// deployments with an external identity system.
	Roles permission.RoleStore
	// Ledger optionally replaces the built-in in-memory ledger.
	Ledger ledger.Ledger
}

// Engine is the main handle. It owns the key-value store, the byte store and
// the protocol dispatcher, and the lifecycle of all of them.
type Engine struct {
	log    *slog.Logger
	config Config

	roles permission.RoleStore
	pay   ledger.Ledger

	mu         sync.RWMutex
	kv         *keyValStore.KeyValStore
	dispatcher *protocol.Dispatcher

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// New constructs an engine handle. New does not perform heavy I/O or start
// background goroutines. Call Start to initialize subsystems.
func New(conf Config) (*Engine, error) {
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Secret == "" {
		return nil, fmt.Errorf("a sealing secret must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = logging.New(slog.LevelInfo)
	}

	roles := conf.Roles
	if roles == nil {
		roles = permission.NewMemoryRoleStore()
	}
	pay := conf.Ledger
	if pay == nil {
		pay = ledger.NewMemory(conf.PricePerKiB)
	}

	return &Engine{
		log:    conf.Logger,
		config: conf,
		roles:  roles,
		pay:    pay,
	}, nil
}

// Start initializes the storage stack and marks the engine as ready. Start
// is safe to call multiple times; only the first call has effect.
func (e *Engine) Start(ctx context.Context) error {
	var startErr error
	e.startOnce.Do(func() {
		dataRoot := e.config.Paths[0]
		if err := os.MkdirAll(dataRoot, 0o700); err != nil {
			startErr = fmt.Errorf("mkdir %s: %w", dataRoot, err)
			return
		}

		kvDir := filepath.Join(dataRoot, "kv")
		if err := os.MkdirAll(kvDir, 0o700); err != nil {
			startErr = fmt.Errorf("mkdir %s: %w", kvDir, err)
			return
		}

		kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
			Paths:            []string{kvDir},
			MinimumFreeSpace: int(e.config.MinimumFreeGB),
		})
		if err != nil {
			startErr = fmt.Errorf("init kv: %w", err)
			return
		}

		pool := workerpool.NewWorkerPool(workerpool.Config{WorkerCount: e.config.Workers})

		bytes, err := bytestore.New(kv, e.config.Secret, pool, e.log)
		if err != nil {
			startErr = fmt.Errorf("init byte store: %w", err)
			kv.Close()
			return
		}

		dispatcher := protocol.New(
			resourcestore.New(kv),
			headerstore.New(kv),
			chunkindex.New(kv, bytes),
			e.roles,
			e.pay,
			e.log,
			protocol.Config{ChunkMode: e.config.ChunkMode, ChunkSize: e.config.ChunkSize},
		)

		e.mu.Lock()
		e.kv = kv
		e.dispatcher = dispatcher
		e.mu.Unlock()

		e.started.Store(true)
		e.log.Info("engine started", "path", dataRoot)
	})
	return startErr
}

// Run starts the engine, then blocks until ctx is canceled, and finally
// performs a bounded graceful shutdown. It is a convenience for services.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Close(shutdownCtx)
}

// Close releases the storage stack. Close is idempotent and safe to call
// multiple times.
func (e *Engine) Close(ctx context.Context) error {
	var closeErr error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		kv := e.kv
		e.kv = nil
		e.dispatcher = nil
		e.mu.Unlock()

		if kv != nil {
			if err := kv.Close(); err != nil {
				closeErr = errors.Join(closeErr, fmt.Errorf("close kv: %w", err))
			}
		}

		e.log.Info("engine closed")
	})
	return closeErr
}

// CloseWithoutContext closes the engine using a background context.
// Prefer Close(ctx) to enforce an application-specific shutdown deadline.
func (e *Engine) CloseWithoutContext() error {
	return e.Close(context.Background())
}

// Handle runs one request through the protocol state machine.
func (e *Engine) Handle(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	d, err := e.dispatcherHandle()
	if err != nil {
		return protocol.Response{}, err
	}
	return d.Handle(ctx, req)
}

// Roles returns the role store backing authorization. Deployments using the
// built-in store grant and revoke through it.
func (e *Engine) Roles() permission.RoleStore {
	return e.roles
}

// Ledger returns the ledger pricing chunk publication.
func (e *Engine) Ledger() ledger.Ledger {
	return e.pay
}

func (e *Engine) dispatcherHandle() (*protocol.Dispatcher, error) {
	if !e.started.Load() {
		return nil, ErrNotStarted
	}

	e.mu.RLock()
	d := e.dispatcher
	e.mu.RUnlock()
	if d == nil {
		return nil, ErrClosed
	}

	return d, nil
}

// Package main provides the presence server binary. It serves the WebSocket
// transport and, when enabled, the gRPC Presence stream over one engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/hangout/internal/config"
	"github.com/cory-johannsen/hangout/internal/content"
	"github.com/cory-johannsen/hangout/internal/frontend/ws"
	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/session"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/gameserver"
	"github.com/cory-johannsen/hangout/internal/gateway"
	"github.com/cory-johannsen/hangout/internal/observability"
	"github.com/cory-johannsen/hangout/internal/server"
	"github.com/cory-johannsen/hangout/internal/storage"
	"github.com/cory-johannsen/hangout/internal/storage/memory"
	"github.com/cory-johannsen/hangout/internal/storage/postgres"
)

const (
	dbHealthInterval = 30 * time.Second
	dbConnectTimeout = 10 * time.Second
)

// backend groups the persistence collaborators of the selected storage driver.
type backend struct {
	auth      account.Authenticator
	positions account.PositionWriter
	owned     gameserver.InventoryLoader
	itemSrc   inventory.ItemSource
	itemDst   inventory.ItemWriter
	rooms     world.RoomSource
	pool      *postgres.Pool
	// degraded is set when the database could not be reached at startup.
	degraded bool
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting presence server",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	if be.degraded {
		logger.Warn("running in fallback mode without database")
	}

	engine := newEngine(ctx, cfg, be, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", ws.NewServer(cfg.HTTP, engine, logger))

	if cfg.GRPC.Enabled {
		grpcServer := grpc.NewServer()
		gameserver.RegisterPresenceServer(grpcServer, gameserver.NewPresenceService(engine, logger))
		lifecycle.Add("grpc", &server.FuncService{
			StartFn: func() error {
				lis, err := net.Listen("tcp", cfg.GRPC.Addr())
				if err != nil {
					return fmt.Errorf("listening on %s: %w", cfg.GRPC.Addr(), err)
				}
				logger.Info("gRPC server listening",
					zap.String("addr", lis.Addr().String()),
				)
				return grpcServer.Serve(lis)
			},
			StopFn: func() {
				grpcServer.GracefulStop()
			},
		})
	}

	if be.pool != nil {
		pool := be.pool
		health := server.NewTickerService("postgres", dbHealthInterval, func(ctx context.Context) error {
			return pool.Health(ctx, 5*time.Second)
		}, logger)
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: health.Start,
			StopFn: func() {
				health.Stop()
				pool.Close()
			},
		})
	}

	logger.Info("presence server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Bool("grpc", cfg.GRPC.Enabled),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// newEngine loads the room directory and ground cache from be and builds the engine.
// A failing room source leaves the fallback rooms installed and a failing item
// source leaves the ground empty; neither stops startup.
func newEngine(ctx context.Context, cfg config.Config, be backend, logger *zap.Logger) *gameserver.Engine {
	rooms := world.NewDirectory()
	n, err := rooms.Load(ctx, be.rooms)
	if err != nil {
		logger.Warn("room directory degraded to fallback rooms", zap.Error(err))
	}
	logger.Info("rooms loaded", zap.Int("rooms", n), zap.Bool("degraded", rooms.Degraded()))

	ground := inventory.NewGroundCache(be.itemDst, logger)
	n, err = ground.Load(ctx, be.itemSrc)
	if err != nil {
		logger.Warn("loading ground items, starting with an empty ground", zap.Error(err))
	}
	logger.Info("ground items loaded", zap.Int("items", n))

	return gameserver.NewEngine(gameserver.Deps{
		Auth:      be.auth,
		Inventory: be.owned,
		Positions: be.positions,
		Rooms:     rooms,
		Ground:    ground,
		Sessions:  session.NewRegistry(),
		Gateway:   gateway.New(cfg.Presence.OutboundBuffer, logger),
		Logger:    logger,
	}, gameserver.Options{
		DefaultRoom:    cfg.Presence.DefaultRoom,
		PersistTimeout: cfg.Presence.PersistTimeout,
		FlushPosition:  cfg.Presence.FlushPosition,
	})
}

// openBackend builds the collaborators of the configured storage driver. An
// unreachable database yields a degraded backend instead of an error: no room
// source, an empty ground, and logins that report the store as unavailable.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		seed, err := content.LoadFile(cfg.Storage.SeedFile)
		if err != nil {
			return backend{}, err
		}
		store, err := memory.NewFromSeed(ctx, seed)
		if err != nil {
			return backend{}, err
		}
		logger.Info("memory store seeded",
			zap.String("seed_file", cfg.Storage.SeedFile),
			zap.Int("rooms", len(seed.Rooms)),
			zap.Int("items", len(seed.Items)),
			zap.Int("users", len(seed.Users)),
		)
		return backend{
			auth:      store,
			positions: store,
			owned:     store,
			itemSrc:   store,
			itemDst:   store,
			rooms:     store,
		}, nil
	default:
		dbStart := time.Now()
		cctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
		pool, err := postgres.NewPool(cctx, cfg.Database)
		cancel()
		if err != nil {
			logger.Warn("database unavailable",
				zap.String("host", cfg.Database.Host),
				zap.Int("port", cfg.Database.Port),
				zap.Error(err),
			)
			return backend{
				auth:     storage.Offline{},
				owned:    storage.Offline{},
				itemSrc:  storage.Offline{},
				degraded: true,
			}, nil
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		users := postgres.NewUserRepository(pool.DB())
		items := postgres.NewItemRepository(pool.DB())
		return backend{
			auth:      users,
			positions: users,
			owned:     items,
			itemSrc:   items,
			itemDst:   items,
			rooms:     postgres.NewRoomRepository(pool.DB()),
			pool:      pool,
		}, nil
	}
}

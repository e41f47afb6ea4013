package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-product-dal/config"
	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/database"
	"github.com/fekuna/omnipos-product-dal/internal/event"
	"github.com/fekuna/omnipos-product-dal/internal/handler"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/fekuna/omnipos-product-dal/internal/middleware"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
	"github.com/fekuna/omnipos-product-dal/internal/tracing"

	catRepoPkg "github.com/fekuna/omnipos-product-dal/internal/category/repository"
	catUCPkg "github.com/fekuna/omnipos-product-dal/internal/category/usecase"

	mfrRepoPkg "github.com/fekuna/omnipos-product-dal/internal/manufacturer/repository"

	prodListenerPkg "github.com/fekuna/omnipos-product-dal/internal/product/listener"
	prodRepoPkg "github.com/fekuna/omnipos-product-dal/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-product-dal/internal/product/usecase"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := openDatabase(cfg)
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := schema.Migrate(ctx, db); err != nil {
		appLogger.Fatal("Could not migrate database", zap.Error(err))
	}

	registry, err := schema.NewRegistry()
	if err != nil {
		appLogger.Fatal("Invalid entity registry", zap.Error(err))
	}

	// 4. Events and tracing
	sinks := dal.MultiSink{event.NewLogSink(appLogger)}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaWriter := event.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer kafkaWriter.Close()

		var opts []event.KafkaSinkOption
		if cfg.Kafka.PublishLoaded {
			opts = append(opts, event.WithLoadedEvents())
		}
		sinks = append(sinks, event.NewKafkaSink(kafkaWriter, opts...))
		appLogger.Info("Publishing events to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.EventsTopic))
	}

	tracerProvider := tracing.NewProvider(appLogger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	stack := dal.NewStack(dal.StackConfig{
		DB:       db,
		Registry: registry,
		Sink:     sinks,
		Tracer:   tracerProvider.Tracer(cfg.Tracing.ServiceName),
		Logger:   appLogger,
		WriterOptions: []dal.WriterOption{
			dal.WithStrict(cfg.Catalog.StrictWrites),
			dal.WithHooks(schema.CategoryTreeIndexer),
		},
	})

	// 5. Initialize Repositories and UseCases
	catRepo := catRepoPkg.NewDALRepository(stack)
	prodRepo := prodRepoPkg.NewDALRepository(stack)
	mfrRepo := mfrRepoPkg.NewDALRepository(stack)

	catUC := catUCPkg.NewCategoryUseCase(catRepo, appLogger)
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, mfrRepo, appLogger)

	// 6. Initialize Listeners
	if len(cfg.Kafka.Brokers) > 0 {
		reader := prodListenerPkg.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID)
		defer reader.Close()
		stockListener := prodListenerPkg.NewStockListener(reader, prodUC, appLogger)
		go stockListener.Start(ctx)
	}

	// 7. Initialize Handlers
	entityHandler := handler.NewEntityHandler(stack, prodUC, catUC, appLogger)

	// 8. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextInterceptor(),
			middleware.LoggingInterceptor(appLogger),
		),
	)

	// Register Services
	handler.RegisterEntityServiceServer(grpcServer, entityHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.Driver == database.DriverSQLite {
		return database.NewSQLite(cfg.SQLite.Path)
	}
	return database.NewPostgres(&database.PostgresConfig{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
}

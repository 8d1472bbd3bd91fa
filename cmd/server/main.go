// Command afk-server serves the object graph over gRPC and REST.
package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/tamir303/Afekaton2024/internal/config"
	pkgcrypto "github.com/tamir303/Afekaton2024/internal/crypto"
	"github.com/tamir303/Afekaton2024/internal/limiter"
	"github.com/tamir303/Afekaton2024/internal/migrate"
	"github.com/tamir303/Afekaton2024/internal/notify"
	"github.com/tamir303/Afekaton2024/internal/repository"
	"github.com/tamir303/Afekaton2024/internal/repository/memory"
	"github.com/tamir303/Afekaton2024/internal/repository/postgres"
	grpcserver "github.com/tamir303/Afekaton2024/internal/server/grpc"
	httpserver "github.com/tamir303/Afekaton2024/internal/server/http"
	"github.com/tamir303/Afekaton2024/internal/service"
	"github.com/tamir303/Afekaton2024/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// repos bundles one backend's repositories and its login limiter.
type repos struct {
	users    repository.UserRepository
	objects  repository.ObjectRepository
	edges    repository.EdgeRepository
	commands repository.CommandRepository
	subjects repository.SubjectRepository
	lim      limiter.Limiter
	close    func()
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("store", cfg.Store),
		zap.String("grpc", cfg.GRPCAddr),
		zap.String("http", cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func openRepos(ctx context.Context, cfg config.Config, logger *zap.Logger) (*repos, error) {
	if cfg.Store == config.StoreMemory {
		st, err := memory.New()
		if err != nil {
			return nil, err
		}
		return &repos{
			users:    memory.NewUserRepo(st),
			objects:  memory.NewObjectRepo(st),
			edges:    memory.NewEdgeRepo(st),
			commands: memory.NewCommandRepo(st),
			subjects: memory.NewSubjectRepo(st),
			lim:      limiter.NewMemory(cfg.Limiter),
			close:    func() {},
		}, nil
	}

	schema, err := migrate.Up(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("schema ready", zap.Int64("version", schema))
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &repos{
		users:    postgres.NewUserRepo(db),
		objects:  postgres.NewObjectRepo(db),
		edges:    postgres.NewEdgeRepo(db),
		commands: postgres.NewCommandRepo(db),
		subjects: postgres.NewSubjectRepo(db),
		lim:      limiter.NewPG(db.Pool, cfg.Limiter),
		close:    db.Close,
	}, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	r, err := openRepos(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer r.close()

	tokens := token.NewManager([]byte(cfg.JWTKey), cfg.JWTTTL)
	dispatcher := notify.New(r.users, logger.Named("notify"), cfg.Notify)
	defer dispatcher.Wait()

	commands := service.NewCommandService(r.commands, r.objects, dispatcher, logger)
	objects := service.NewObjectService(r.users, r.objects, r.edges, commands, logger)
	svc := service.Services{
		Users:    service.NewUserService(r.users, pkgcrypto.NewHasher(pkgcrypto.DefaultParams), tokens, r.lim, logger),
		Objects:  objects,
		Query:    service.NewQueryService(r.objects, objects),
		Commands: commands,
		Subjects: service.NewSubjectService(r.subjects, logger),
	}

	if cfg.SweepInterval > 0 {
		go service.NewEdgeSweeper(r.edges, cfg.SweepInterval, logger.Named("sweeper")).Run(ctx)
	}

	errCh := make(chan error, 2)

	var gs *grpc.Server
	if cfg.GRPCAddr != "" {
		gs, err = newGRPC(cfg, svc, tokens, logger)
		if err != nil {
			return err
		}
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLSCert != ""))
			errCh <- gs.Serve(lis)
		}()
	}

	var hs *httpserver.Server
	if cfg.HTTPAddr != "" {
		hs = httpserver.New(httpserver.Options{
			Addr:     cfg.HTTPAddr,
			Debug:    cfg.Dev,
			Services: svc,
			Tokens:   tokens,
			Log:      logger.Named("http"),
		})
		go func() { errCh <- hs.Start() }()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if hs != nil {
		if err := hs.Stop(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if gs != nil {
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			gs.Stop()
		}
	}
	return runErr
}

func newGRPC(cfg config.Config, svc service.Services, tokens *token.Manager, logger *zap.Logger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(tokens),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	s := grpc.NewServer(opts...)
	grpcserver.Register(s, grpcserver.New(svc, tokens))

	healthpb.RegisterHealthServer(s, health.NewServer())
	if cfg.Dev {
		reflection.Register(s)
	}
	return s, nil
}

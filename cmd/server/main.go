package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	contactProvider "github.com/wso2/identity-contact-resolution-service/internal/contact/provider"
	"github.com/wso2/identity-contact-resolution-service/internal/contact/store"
	healthProvider "github.com/wso2/identity-contact-resolution-service/internal/health_check/provider"
	"github.com/wso2/identity-contact-resolution-service/internal/system/config"
	"github.com/wso2/identity-contact-resolution-service/internal/system/constants"
	sysContext "github.com/wso2/identity-contact-resolution-service/internal/system/context"
	"github.com/wso2/identity-contact-resolution-service/internal/system/database/lock"
	"github.com/wso2/identity-contact-resolution-service/internal/system/database/provider"
	errors2 "github.com/wso2/identity-contact-resolution-service/internal/system/errors"
	"github.com/wso2/identity-contact-resolution-service/internal/system/log"
	"github.com/wso2/identity-contact-resolution-service/internal/system/managers"
	"github.com/wso2/identity-contact-resolution-service/internal/system/metrics"
	"github.com/wso2/identity-contact-resolution-service/internal/system/mongodb"
	"golang.org/x/sync/errgroup"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	serviceHome := getServiceHome()
	const configFile = "/repository/conf/deployment.yaml"

	envFiles, err := filepath.Glob(filepath.Join(serviceHome, "config", "*.env"))
	if err == nil && len(envFiles) > 0 {
		_ = godotenv.Load(envFiles...)
	}

	// Load the configuration file
	serviceConfig, err := config.LoadConfig(serviceHome, configFile)
	if err != nil {
		exitf("Failed to load configuration: %v", err)
	}

	// Initialize runtime configurations.
	if err := config.InitializeRuntime(serviceHome, serviceConfig); err != nil {
		exitf("Failed to initialize runtime: %v", err)
	}

	// Initialize logger
	if err := log.InitWithFormat(serviceConfig.Log.LogLevel, serviceConfig.Log.Format, os.Stdout); err != nil {
		exitf("Failed to initialize logger: %v", err)
	}
	logger := log.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transactor, err := initContactStore(ctx, serviceConfig)
	if err != nil {
		logger.Fatal("Failed to initialize contact store", log.String("store", serviceConfig.Store.Type), log.Error(err))
	}
	defer func() {
		if err := transactor.Close(context.Background()); err != nil {
			logger.Warn("Failed to close contact store", log.Error(err))
		}
	}()

	if err := transactor.InitSchema(ctx); err != nil {
		logger.Fatal("Failed to initialize contact schema", log.Error(err))
	}

	var serviceMetrics *metrics.Metrics
	var gatherer prometheus.Gatherer
	if serviceConfig.Metrics.Enabled {
		serviceMetrics = metrics.New(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	serviceManager := managers.NewServiceManager(mux, managers.Dependencies{
		ContactProvider: contactProvider.NewContactProvider(transactor, serviceConfig.Resolver, serviceMetrics),
		HealthProvider:  healthProvider.NewHealthCheckProvider(transactor),
		Gatherer:        gatherer,
	})
	// Register the services.
	if err := serviceManager.RegisterServices(constants.ApiBasePath); err != nil {
		logger.Fatal("Failed to register the services", log.Error(err))
	}

	serverAddr := fmt.Sprintf("%s:%d", serviceConfig.Addr.Host, serviceConfig.Addr.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           sysContext.TraceMiddleware(enableCORS(mux, serviceConfig.CORS.AllowedOrigins)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ln, err := net.Listen("tcp", serverAddr)
		if err != nil {
			return fmt.Errorf("failed to start listener: %w", err)
		}
		logger.Info("Contact resolution service started", log.String("address", serverAddr),
			log.String("store", serviceConfig.Store.Type), log.String("service_home", config.GetRuntime().ServiceHome))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down contact resolution service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Contact resolution service stopped with error", log.Error(err))
		return
	}
	logger.Info("Contact resolution service stopped")
}

// initContactStore connects the backend selected by store.type.
func initContactStore(ctx context.Context, conf *config.Config) (store.TransactorInterface, error) {

	switch conf.Store.Type {
	case constants.PostgresStore:
		dbClient, err := provider.NewDBProvider(conf.DataSource).GetDBClient(ctx)
		if err != nil {
			return nil, errors2.NewServerError(errors2.DB_CLIENT_INIT, err)
		}
		return store.NewPostgresTransactor(dbClient, lock.NewPostgresXactLock(conf.Resolver.LockTimeout())), nil

	case constants.MongoDBStore:
		db, err := mongodb.Connect(ctx, conf.MongoDB)
		if err != nil {
			return nil, errors2.NewServerError(errors2.DB_CLIENT_INIT, err)
		}
		return store.NewMongoTransactor(db, conf.MongoDB.Transactions, conf.Resolver.LockTimeout()), nil

	case constants.MemoryStore:
		log.GetLogger().Warn("Using the in-memory contact store; contacts are lost on restart")
		return store.NewMemoryTransactor(), nil

	default:
		return nil, fmt.Errorf("unsupported store type %q", conf.Store.Type)
	}
}

func enableCORS(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowedOrigin(r.Header.Get("Origin"), allowedOrigins); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+constants.TraceIDHeader)
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, "+constants.TraceIDHeader)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedOrigin returns the value for Access-Control-Allow-Origin, or "" when origin is not allowed.
// No configured origins allows every origin.
func allowedOrigin(origin string, allowedOrigins []string) string {
	if len(allowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && allowed == origin {
			return origin
		}
	}
	return ""
}

func getServiceHome() string {

	// Parse project directory from command line arguments.
	projectHome := ""
	projectHomeFlag := flag.String("serviceHome", "", "Path to contact resolution service home directory")
	flag.Parse()

	if *projectHomeFlag != "" {
		projectHome = *projectHomeFlag
	} else {
		// If no command line argument is provided, use the current working directory.
		dir, dirErr := os.Getwd()
		if dirErr != nil {
			exitf("Failed to get current working directory: %v", dirErr)
		}
		projectHome = dir
	}

	return projectHome
}

func exitf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

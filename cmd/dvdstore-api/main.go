package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/lumenmedia/dvdstore/internal/cache"
	"github.com/lumenmedia/dvdstore/internal/catalog"
	"github.com/lumenmedia/dvdstore/internal/config"
	"github.com/lumenmedia/dvdstore/internal/database"
	"github.com/lumenmedia/dvdstore/internal/logging"
	"github.com/lumenmedia/dvdstore/internal/queue"
	"github.com/lumenmedia/dvdstore/internal/replica"
	"github.com/lumenmedia/dvdstore/internal/replication"
	"github.com/lumenmedia/dvdstore/internal/server"
)

const bootTimeout = 10 * time.Second

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "dvdstore-api",
		Short: "DVD catalog service with asynchronous replica and read cache",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Record store driver (sqlite, mysql)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Record store DSN")
	cmd.PersistentFlags().String("broker-url", defaults.GetString("broker.url"), "Queue broker URL")
	cmd.PersistentFlags().String("replica-uri", defaults.GetString("replica.uri"), "Document replica connection URI")
	cmd.PersistentFlags().String("replica-database", defaults.GetString("replica.database"), "Document replica database name")
	cmd.PersistentFlags().String("cache-address", defaults.GetString("cache.address"), "Read cache address")
	cmd.PersistentFlags().Duration("cache-ttl", defaults.GetDuration("cache.ttl"), "Read cache entry time to live")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "broker.url", "broker-url")
	bindFlag(cmd, "replica.uri", "replica-uri")
	bindFlag(cmd, "replica.database", "replica-database")
	bindFlag(cmd, "cache.address", "cache-address")
	bindFlag(cmd, "cache.ttl", "cache-ttl")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// runServer boots every dependency in order, failing fast when one cannot
// connect: cache, record store, replica, broker, consumers, HTTP listener.
func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	bootCtx, cancelBoot := context.WithTimeout(ctx, bootTimeout)
	defer cancelBoot()

	readCache, err := cache.DialRedis(bootCtx, appConfig.CacheAddress, appConfig.CachePassword)
	if err != nil {
		logger.Error("cache connect failed", zap.Error(err))
		return err
	}
	defer readCache.Close()
	logger.Info("cache connected", zap.String("address", appConfig.CacheAddress))

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		logger.Error("record store connect failed", zap.Error(err))
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	mongoClient, err := mongo.Connect(bootCtx, options.Client().ApplyURI(appConfig.ReplicaURI))
	if err != nil {
		logger.Error("replica connect failed", zap.Error(err))
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongoClient.Disconnect(disconnectCtx) //nolint:errcheck
	}()
	if err := mongoClient.Ping(bootCtx, readpref.Primary()); err != nil {
		logger.Error("replica ping failed", zap.Error(err))
		return err
	}
	replicaStore := replica.NewMongoStore(mongoClient.Database(appConfig.ReplicaDatabase), logger)
	logger.Info("replica connected", zap.String("database", appConfig.ReplicaDatabase))

	amqpBroker, err := queue.DialAMQP(appConfig.BrokerURL, []string{
		replication.QueueDVDs,
		replication.QueueDirectors,
	}, logger)
	if err != nil {
		logger.Error("broker connect failed", zap.Error(err))
		return err
	}
	var broker queue.Broker = amqpBroker
	defer broker.Close()

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	publisher, err := replication.NewPublisher(replication.PublisherConfig{
		Broker: broker,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	dvdApplier, err := replication.NewDVDApplier(replicaStore, time.Now, logger)
	if err != nil {
		return err
	}
	directorApplier, err := replication.NewDirectorApplier(replicaStore, time.Now, logger)
	if err != nil {
		return err
	}

	dvdConsumer, err := replication.NewConsumer(replication.ConsumerConfig{
		Source:    broker,
		QueueName: replication.QueueDVDs,
		Apply:     dvdApplier.Apply,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	directorConsumer, err := replication.NewConsumer(replication.ConsumerConfig{
		Source:    broker,
		QueueName: replication.QueueDirectors,
		Apply:     directorApplier.Apply,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Catalog:   catalogService,
		Publisher: publisher,
		Cache:     readCache,
		CacheTTL:  appConfig.CacheTTL,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runConsumer := func(consumer *replication.Consumer) {
		if err := consumer.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("replication consumer exited", zap.Error(err))
		}
	}
	go runConsumer(dvdConsumer)
	go runConsumer(directorConsumer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

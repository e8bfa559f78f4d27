package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Momena-akhtar/classfellow-sub000/internal/profile"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/session"
	"github.com/Momena-akhtar/classfellow-sub000/server"
	"github.com/Momena-akhtar/classfellow-sub000/server/internal/observability"
	"github.com/Momena-akhtar/classfellow-sub000/store"
	"github.com/Momena-akhtar/classfellow-sub000/store/cache"
	"github.com/Momena-akhtar/classfellow-sub000/store/db"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "classfellow",
	Short: `A live lecture-session service that buffers transcript chunks and summarizes them as they arrive.`,
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if viper.IsSet("redis-addr") {
			instanceProfile.RedisAddr = viper.GetString("redis-addr")
		}
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("failed to validate profile", "error", err)
			os.Exit(1)
		}

		if instanceProfile.IsDev() {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}

		ctx, cancel := context.WithCancel(context.Background())
		if err := run(ctx, instanceProfile); err != nil {
			cancel()
			slog.Error("failed to run server", "error", err)
			os.Exit(1)
		}
		cancel()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver, sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("redis-addr", "", "redis address for live session state, in-process cache when empty")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "redis-addr"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("classfellow")
	viper.AutomaticEnv()
	if err := viper.BindEnv("redis-addr", "CLASSFELLOW_REDIS_ADDR"); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, instanceProfile *profile.Profile) error {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()

	if err := storeInstance.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}

	stateCache, err := newStateCache(instanceProfile)
	if err != nil {
		return err
	}
	defer stateCache.Close()

	metrics := observability.NewMetrics(1000)
	opts := []session.Option{
		session.WithObserver(metrics),
		session.WithStoreTimeout(instanceProfile.StoreTimeout),
	}
	summarizer, err := newSummarizer(instanceProfile)
	if err != nil {
		return err
	}
	if summarizer != nil {
		opts = append(opts, session.WithSummarizer(summarizer, session.DefaultDispatcherConfig()))
	}

	manager := session.NewManager(
		session.NewStateStore(stateCache, instanceProfile.SessionTTL, instanceProfile.StoreTimeout),
		storeInstance,
		opts...,
	)

	s := server.NewServer(instanceProfile, manager, metrics)

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	printGreetings(instanceProfile)

	<-c
	s.Shutdown(ctx)
	return nil
}

func newStateCache(instanceProfile *profile.Profile) (cache.StateCache, error) {
	if !instanceProfile.UseRedis() {
		slog.Info("using in-process state cache; live sessions are lost on restart")
		return cache.NewMemoryCache(cache.DefaultConfig()), nil
	}

	cfg := cache.DefaultRedisConfig()
	cfg.Addr = instanceProfile.RedisAddr
	cfg.Password = instanceProfile.RedisPassword
	cfg.DB = instanceProfile.RedisDB
	cfg.KeyPrefix = instanceProfile.RedisPrefix
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	return redisCache, nil
}

// newSummarizer returns nil when AI is disabled; triggers then only update bookkeeping.
func newSummarizer(instanceProfile *profile.Profile) (ai.Summarizer, error) {
	if !instanceProfile.IsAIEnabled() {
		slog.Info("AI summarization disabled")
		return nil, nil
	}

	aiConfig := ai.NewConfigFromProfile(instanceProfile)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AI configuration")
	}
	summarizer, err := ai.NewSummarizer(aiConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create summarizer")
	}
	slog.Info("AI summarization enabled", "provider", aiConfig.LLM.Provider, "model", aiConfig.LLM.Model)
	return summarizer, nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("classfellow %s started successfully!\n", profile.Version)
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if profile.Addr == "" {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

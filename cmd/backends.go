package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/inkwell-ai/recall/pkg/config"
	"github.com/inkwell-ai/recall/pkg/semindex"
	"github.com/inkwell-ai/recall/pkg/semindex/pinecone"
	"github.com/inkwell-ai/recall/pkg/semindex/qdrant"
	"github.com/inkwell-ai/recall/pkg/store"
)

// loadConfig resolves the effective configuration for a command run,
// falling back to defaults when no config file is present.
func loadConfig() (*config.Config, error) {
	if viper.ConfigFileUsed() == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(viper.GetViper())
}

// entryLister is the store-side iteration surface used by the stats and
// export commands. Both bundled stores implement it.
type entryLister interface {
	Entries(ctx context.Context, fn func(store.Entry) error) error
}

// warnIfEphemeral notes that the memory backend starts empty in every
// process, so inspection commands have nothing shared to look at.
func warnIfEphemeral(cfg *config.Config) {
	if cfg.Store.Backend == "memory" || cfg.Store.Backend == "" {
		fmt.Fprintln(os.Stderr, "Warning: the memory backend is per-process; this command sees an empty store")
	}
}

// openStore builds the response store named by the config.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedisStore(ctx, store.RedisConfig{
			URL:         cfg.Store.Redis.URL,
			Password:    cfg.Store.Redis.Password,
			DB:          cfg.Store.Redis.DB,
			KeyPrefix:   cfg.Store.Redis.KeyPrefix,
			TTL:         cfg.Cache.TTL,
			PoolSize:    cfg.Store.Redis.PoolSize,
			DialTimeout: cfg.Store.Redis.DialTimeout,
			OpTimeout:   cfg.Store.Redis.OpTimeout,
		})
	case "memory", "":
		return store.NewMemoryStore(store.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			TTL:        cfg.Cache.TTL,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %q", cfg.Store.Backend)
	}
}

// openIndex builds the semantic index named by the config, or returns
// nil when semantic matching is disabled.
func openIndex(ctx context.Context, cfg *config.Config) (semindex.Index, error) {
	if !cfg.Semantic.Enabled {
		return nil, nil
	}
	switch cfg.Semantic.Backend {
	case "qdrant":
		return qdrant.New(ctx, qdrant.Config{
			Host:       cfg.Semantic.Host,
			Collection: cfg.Semantic.Collection,
			APIKey:     cfg.Semantic.APIKey,
		})
	case "pinecone":
		return pinecone.New(ctx, pinecone.Config{
			APIKey:    cfg.Semantic.APIKey,
			IndexName: cfg.Semantic.Index,
			Namespace: cfg.Semantic.Namespace,
		})
	case "memory", "":
		return semindex.NewMemory(cfg.Semantic.MaxVectors), nil
	default:
		return nil, fmt.Errorf("unsupported semantic backend: %q", cfg.Semantic.Backend)
	}
}

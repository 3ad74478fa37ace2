package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"hiddenbox/pkg/cipher"
	"hiddenbox/pkg/engine"
	"hiddenbox/pkg/meta"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/storage/cache"
	"hiddenbox/pkg/storage/disk"
	"hiddenbox/pkg/storage/s3"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Store   storage.Store
	Engine  *engine.Engine
	Catalog *meta.Repository
	Logger  *slog.Logger

	RepoPath string

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 仓库根路径 (Single Source of Truth)
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		return nil, fmt.Errorf("storage path not set")
	}
	repoPath := filepath.Dir(storePath)

	logger := newLogger(viper.GetString("log.level"))

	a := &App{RepoPath: repoPath, Logger: logger}

	// 2. 存储层
	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Store = store

	// 3. 引擎
	alg, err := cipher.ParseAlgorithm(viper.GetString("cipher.algorithm"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine, err = engine.New(store, engine.Config{
		ChunkSize: viper.GetInt64("chunk.size"),
		Workers:   viper.GetInt("engine.workers"),
		Algorithm: alg,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	// 4. 目录数据库
	db, err := meta.NewDB(ctx, meta.Config{
		Type:     viper.GetString("database.type"),
		Path:     viper.GetString("database.path"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
		Debug:    viper.GetBool("database.debug"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	a.closers = append(a.closers, db)
	a.Catalog = meta.NewRepository(db)

	return a, nil
}

// Close 释放数据库和缓存连接
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// initStore 按 storage.type 选择后端；配置了 Redis 时再套一层存在性缓存
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch t := viper.GetString("storage.type"); t {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			path = filepath.Join(repoPath, "chunks")
		}
		store, err = disk.NewAdapter(path)
		if err != nil {
			return nil, fmt.Errorf("failed to init disk storage: %w", err)
		}
	case "s3":
		bucket := viper.GetString("storage.s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("storage.s3.bucket is required")
		}
		store, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          bucket,
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}

	if url := viper.GetString("cache.redis_url"); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
		return cached, nil
	}
	return store, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

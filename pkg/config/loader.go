package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.hb -> ~/.hb
		viper.AddConfigPath(".")
		viper.AddConfigPath(".hb")
		viper.AddConfigPath(filepath.Join(home, ".hb"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (HB_STORAGE_TYPE, HB_CHUNK_SIZE 等)
	viper.SetEnvPrefix("HB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，可能全靠默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return Validate()
}

// Validate 检查会导致运行期失败的配置
func Validate() error {
	if viper.GetInt64("chunk.size") <= 0 {
		return fmt.Errorf("chunk.size must be positive, got %d", viper.GetInt64("chunk.size"))
	}
	switch t := viper.GetString("storage.type"); t {
	case "disk", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %s", t)
	}
	return nil
}

// RepoDir 是仓库元数据目录 (.hb)
func RepoDir() string {
	return filepath.Dir(viper.GetString("storage.path"))
}

func setDefaults() {
	// 引擎
	viper.SetDefault("chunk.size", 1024*1024) // 1 MiB
	viper.SetDefault("engine.workers", 0)     // GOMAXPROCS
	viper.SetDefault("cipher.algorithm", "aes-256-gcm")
	viper.SetDefault("manifest.format", "json")

	// 存储默认值
	wd, _ := os.Getwd()
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(wd, ".hb", "chunks"))
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.prefix", "chunks/")

	// 目录数据库默认值
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", filepath.Join(wd, ".hb", "catalog.db"))
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 存在性缓存，默认关闭
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)

	// 日志
	viper.SetDefault("log.level", "warn")
}

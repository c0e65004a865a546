package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Execution ExecutionConfig `mapstructure:"execution"`
}

// GatewayConfig 连接监听与握手凭据配置 (spec §6.3)
type GatewayConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	SubProtocol string `mapstructure:"subprotocol"` // 必须协商一致，默认 "alger"
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	DataDir     string `mapstructure:"data_dir"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres, memory
	DSN  string `mapstructure:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ExecutionConfig 准入控制默认值，对应 ServerState 的初始取值
type ExecutionConfig struct {
	MaxConcurrent   int  `mapstructure:"max_concurrent"`
	Halted          bool `mapstructure:"halted"`
	MaintenanceMode bool `mapstructure:"maintenance_mode"`
}

// Load 加载配置：默认值 → 全局 ~/.alger/ → 项目本地 → 环境变量 (ALGER_ 前缀)
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Layer 1: 全局配置 ~/.alger/config.yaml
	globalDir := filepath.Join(os.Getenv("HOME"), ".alger")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	// Layer 2: 项目本地配置 (覆盖层)，只取第一个找到的
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("ALGER")
	// gateway.port -> ALGER_GATEWAY_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认配置 (spec §6.3)
func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8765)
	v.SetDefault("gateway.subprotocol", "alger")
	v.SetDefault("gateway.username", "admin")
	v.SetDefault("gateway.password", "admin")
	v.SetDefault("gateway.data_dir", "./data")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "alger.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("execution.max_concurrent", 1)
	v.SetDefault("execution.halted", false)
	v.SetDefault("execution.maintenance_mode", false)
}

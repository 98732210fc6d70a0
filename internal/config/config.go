// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Research ResearchConfig `mapstructure:"research"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// SessionConfig 存储会话存储相关的配置。
// Redis.Addr 为空时回退到进程内内存存储（开发模式）。
type SessionConfig struct {
	Redis      RedisConfig `mapstructure:"redis"`
	TTLHours   int         `mapstructure:"ttl_hours"`
	CookieName string      `mapstructure:"cookie_name"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig 存储 PRD 文件落盘相关的配置。
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	Model            string `mapstructure:"model"`
	ChatMaxTokens    int    `mapstructure:"chat_max_tokens"`
	PRDMaxTokens     int    `mapstructure:"prd_max_tokens"`
	ExtractMaxTokens int    `mapstructure:"extract_max_tokens"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
}

// ResearchConfig 存储竞品调研服务（Perplexity）相关的配置。
type ResearchConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为未配置的字段填充默认值。
func applyDefaults() {
	if Conf.Server.Port == "" {
		Conf.Server.Port = "5001"
	}
	if Conf.Session.TTLHours == 0 {
		Conf.Session.TTLHours = 7 * 24
	}
	if Conf.Session.CookieName == "" {
		Conf.Session.CookieName = "prdy_session"
	}
	if Conf.Storage.OutputDir == "" {
		Conf.Storage.OutputDir = "./output"
	}
	if Conf.LLM.BaseURL == "" {
		Conf.LLM.BaseURL = "https://api.anthropic.com/v1"
	}
	if Conf.LLM.ChatMaxTokens == 0 {
		Conf.LLM.ChatMaxTokens = 2048
	}
	if Conf.LLM.PRDMaxTokens == 0 {
		Conf.LLM.PRDMaxTokens = 8192
	}
	if Conf.LLM.ExtractMaxTokens == 0 {
		Conf.LLM.ExtractMaxTokens = 256
	}
	if Conf.LLM.TimeoutSeconds == 0 {
		Conf.LLM.TimeoutSeconds = 120
	}
	if Conf.Research.BaseURL == "" {
		Conf.Research.BaseURL = "https://api.perplexity.ai"
	}
	if Conf.Research.Model == "" {
		Conf.Research.Model = "sonar"
	}
	if Conf.Research.MaxTokens == 0 {
		Conf.Research.MaxTokens = 4096
	}
	if Conf.Research.TimeoutSeconds == 0 {
		Conf.Research.TimeoutSeconds = 60
	}
}

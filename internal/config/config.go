// Package config 定义配置文件结构与加载
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`
	Sqlite  struct {
		Db string `yaml:"db"` // 为空时使用平台默认路径
	} `yaml:"sqlite"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Observer struct {
		RescanSeconds int `yaml:"rescanSeconds"` // 兜底扫描间隔
	} `yaml:"observer"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Log.Level = "info"
	c.Observer.RescanSeconds = 30
	return c
}

// Load 从文件加载配置并合并默认值；文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Observer.RescanSeconds <= 0 {
		cfg.Observer.RescanSeconds = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return cfg, nil
}

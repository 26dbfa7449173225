// Package config 负责加载和校验 YAML 配置。敏感字段（API 密钥）支持
// ${ENV_VAR} 占位，真实值从环境变量注入，不落在配置文件里。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	return Parse(os.ExpandEnv(string(raw)))
}

// Parse 从 YAML 文本构建配置，Load 的无文件版本，测试也走这里。
func Parse(doc string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

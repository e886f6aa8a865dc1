package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
)

type Config struct {
	Env    string `yaml:"env" env-default:"local"`
	Server struct {
		WsURL         string `yaml:"ws_url" env-default:"ws://127.0.0.1:9200/ws"`
		ApiURL        string `yaml:"api_url" env-default:"http://127.0.0.1:9200/api/v1"`
		AuthToken     string `yaml:"auth_token" env:"DESK_AUTH_TOKEN" env-default:""`
		HeartbeatSec  int    `yaml:"heartbeat_sec" env-default:"30"`
		MaxReconnects int    `yaml:"max_reconnects" env-default:"5"`
		BackoffCapMs  int    `yaml:"backoff_cap_ms" env-default:"10000"`
	} `yaml:"server"`
	Agent struct {
		ID           string `yaml:"id" env-default:""`
		DefaultGroup string `yaml:"default_group" env-default:"general"`
	} `yaml:"agent"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9101"`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}

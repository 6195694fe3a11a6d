package main

import (
	"time"
)

// Config is application config.
type Config struct {
	Server ServerConf
	Data   DataConf
	Event  EventConf
	Vector VectorConf
	Auth   AuthConf
	Stats  StatsConf
	Trace  TraceConf
}

// ServerConf is server config.
type ServerConf struct {
	HTTP HTTPConf
}

type HTTPConf struct {
	Addr      string        `yaml:"addr"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit RateLimitConf `yaml:"rate_limit"`
}

type RateLimitConf struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// DataConf is data config.
type DataConf struct {
	Database DatabaseConf `yaml:"database"`
	Redis    RedisConf    `yaml:"redis"`
}

type DatabaseConf struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConf struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// EventConf is Kafka config: work items out, stage results in.
type EventConf struct {
	Brokers       []string `yaml:"brokers"`
	WorkTopic     string   `yaml:"work_topic"`
	ResultTopic   string   `yaml:"result_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// VectorConf is the embedding store (Milvus) config.
type VectorConf struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// AuthConf is auth config.
type AuthConf struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// StatsConf is stats aggregation config.
type StatsConf struct {
	AxisMax float64 `yaml:"axis_max"`
}

// TraceConf is OTLP tracing config.
type TraceConf struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

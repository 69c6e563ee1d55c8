package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	LiveTrack LiveTrackConfig `yaml:"livetrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	LocationUpdatedTopicName   string `yaml:"location_updated_topic_name"`
	CheckpointCreatedTopicName string `yaml:"checkpoint_created_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LiveTrackConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	SnapshotTTLSeconds        int     `yaml:"snapshot_ttl_seconds"`
	TrackingLinkRetentionDays int     `yaml:"tracking_link_retention_days"`
	CheckpointDistanceKm      float64 `yaml:"checkpoint_distance_km"`
	LocationRateLimitPerMin   int     `yaml:"location_rate_limit_per_minute"`

	// OpsToken guards the dispatch websocket. Empty disables the gate,
	// which only makes sense behind the portal's own auth proxy.
	OpsToken string `yaml:"ops_token"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  location_updated_topic_name: "delivery.location.updated"
  checkpoint_created_topic_name: "delivery.checkpoint.created"
redis:
  host: "localhost"
  port: 6379
livetrack:
  http_addr: ":8080"
  kafka_consumer_group: "livetrack"
  snapshot_ttl_seconds: 30
  tracking_link_retention_days: 30
  checkpoint_distance_km: 0.1
  location_rate_limit_per_minute: 120
  ops_token: "staff-token"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "delivery.location.updated", cfg.Kafka.LocationUpdatedTopicName)
	require.Equal(t, "delivery.checkpoint.created", cfg.Kafka.CheckpointCreatedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.LiveTrack.HTTPAddr)
	require.Equal(t, 0.1, cfg.LiveTrack.CheckpointDistanceKm)
	require.Equal(t, "staff-token", cfg.LiveTrack.OpsToken)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

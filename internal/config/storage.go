package config

import "strings"

// StorageConfig selects where results are persisted.
type StorageConfig struct {
	// Kinds is a comma separated list of local, remote and postgres.
	Kinds         string   `yaml:"kinds"`
	LocalPath     string   `yaml:"local_path"`
	Format        string   `yaml:"format"`
	RetentionDays int      `yaml:"retention_days"`
	S3            S3Config `yaml:"s3"`
	PostgresDSN   string   `yaml:"postgres_dsn"`
}

// S3Config locates the remote bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// SeenConfig enables the cross-run "already harvested" set. Without a redis
// address an in-memory set is used.
type SeenConfig struct {
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	TTL           Duration `yaml:"ttl"`
}

func defaultStorage() StorageConfig {
	return StorageConfig{
		Kinds:         defaultStorageKinds,
		LocalPath:     defaultStoragePath,
		Format:        defaultStorageFormat,
		RetentionDays: defaultRetentionDays,
	}
}

func (s *StorageConfig) applyEnv() {
	s.Kinds = envOrDefault(envStorageKinds, s.Kinds)
	s.LocalPath = envOrDefault(envStoragePath, s.LocalPath)
	s.Format = envOrDefault(envStorageFormat, s.Format)
	s.RetentionDays = intEnvOrDefault(envStorageRetention, s.RetentionDays)
	s.S3.Bucket = envOrDefault(envS3Bucket, s.S3.Bucket)
	s.S3.Region = envOrDefault(envS3Region, s.S3.Region)
	s.S3.Endpoint = envOrDefault(envS3Endpoint, s.S3.Endpoint)
	s.S3.AccessKey = envOrDefault(envS3AccessKey, s.S3.AccessKey)
	s.S3.SecretKey = envOrDefault(envS3SecretKey, s.S3.SecretKey)
	s.S3.Prefix = envOrDefault(envS3Prefix, s.S3.Prefix)
	s.S3.PathStyle = boolEnvOrDefault(envS3PathStyle, s.S3.PathStyle)
	s.PostgresDSN = envOrDefault(envPostgresDSN, s.PostgresDSN)
}

func (s StorageConfig) uses(kind string) bool {
	for _, part := range strings.Split(s.Kinds, ",") {
		if strings.EqualFold(strings.TrimSpace(part), kind) {
			return true
		}
	}
	return false
}

func (s *SeenConfig) applyEnv() {
	s.RedisAddr = envOrDefault(envSeenRedisAddr, s.RedisAddr)
	s.RedisPassword = envOrDefault(envSeenRedisPass, s.RedisPassword)
	s.TTL = durationEnvOrDefault(envSeenTTL, s.TTL)
}

package mongo

import "time"

// Config represents the client and queue settings for the MongoDB backend.
type Config struct {
	ConnectionURL   string        `env:"MONGODB_URL,required"`
	ConnectTimeout  time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryWrites     bool          `env:"MONGODB_RETRY_WRITES" envDefault:"true"`
	RetryReads      bool          `env:"MONGODB_RETRY_READS" envDefault:"true"`
	RetryAttempts   int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`

	Database          string        `env:"MONGODB_DATABASE" envDefault:"taskscheduler"`
	CollectionPrefix  string        `env:"MONGODB_COLLECTION_PREFIX" envDefault:"scheduler"` // CollectionPrefix names the <prefix>_topics and <prefix>_messages collections.
	VisibilityTimeout time.Duration `env:"MONGODB_VISIBILITY_TIMEOUT" envDefault:"5m"`
}

package s3

// Config holds the bucket and credentials for the S3 spool backend.
type Config struct {
	Bucket      string `env:"S3_BUCKET"`
	Region      string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID string `env:"S3_ACCESS_KEY_ID"`
	SecretKey   string `env:"S3_SECRET_KEY"`

	// Endpoint and ForcePathStyle target S3-compatible services such as MinIO.
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE"`

	Prefix        string `env:"S3_PREFIX" envDefault:"taskscheduler"`
	ListBatchSize int32  `env:"S3_LIST_BATCH_SIZE" envDefault:"100"` // ListBatchSize is how many keys one poll inspects.
}

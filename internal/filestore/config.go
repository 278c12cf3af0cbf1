package filestore

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings needed to reach an object store.
type Config struct {
	Provider Provider

	// Endpoint is the host:port of the storage server, e.g. "localhost:9000".
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is used by region-aware backends such as AWS S3. Leave empty
	// for MinIO.
	Region string

	// DefaultBucket receives exports when the caller names no bucket.
	DefaultBucket string
}

// DefaultConfig returns a local-dev MinIO config.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

package config

// ConfigProvider abstracts where portal configuration comes from. The YAML
// file provider is the only implementation today; a store-backed provider
// would satisfy the same contract.
type ConfigProvider interface {
	// LoadConfig returns a normalized, validated configuration.
	LoadConfig() (*ConfigData, error)
}

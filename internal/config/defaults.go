package config

const (
	DefaultAPIBaseURL = "http://localhost:8000"
	// DefaultTopK matches what both search screens request.
	DefaultTopK = 12
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = DefaultTopK
	}
	if cfg.Search.Output == "" {
		cfg.Search.Output = "text"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
	}
	if cfg.Backend.Host == "" {
		cfg.Backend.Host = "localhost"
	}
	if cfg.Backend.Port == 0 {
		cfg.Backend.Port = 8000
	}
}

package config

// ServerConfig contains the HTTP server configuration.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// GTFSConfig locates the static bundles and realtime feed files on disk.
// Query parameters name files relative to DataDir.
type GTFSConfig struct {
	DataDir string `yaml:"dataDir"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server ServerConfig `yaml:"server"`
	GTFS   GTFSConfig   `yaml:"gtfs"`
}

package config

import "time"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Analysis      Analysis      `toml:"analysis"`
	Storage       Storage       `toml:"storage"`
	Identity      Identity      `toml:"identity"`
	Watch         Watch         `toml:"watch"`
	Exclude       Exclude       `toml:"exclude"`
	MCP           MCP           `toml:"mcp"`
	Observability Observability `toml:"observability"`
	Limits        Limits        `toml:"limits"`
}

type Paths struct {
	StateDir    string `toml:"state_dir"`
	DatabaseDir string `toml:"database_dir"`
}

type Analysis struct {
	Engine       string   `toml:"engine"`
	TabWidth     int      `toml:"tab_width"`
	MaxFileBytes int64    `toml:"max_file_bytes"`
	Extensions   []string `toml:"extensions"`
}

type Storage struct {
	Backend string        `toml:"backend"`
	Disk    DiskStorage   `toml:"disk"`
	SQLite  SQLiteStorage `toml:"sqlite"`
	S3      S3Storage     `toml:"s3"`
}

type DiskStorage struct {
	Root string `toml:"root"`
}

type SQLiteStorage struct {
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type S3Storage struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

type Identity struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	// Tokens maps a static credential to its owner.
	Tokens map[string]string `toml:"tokens"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type MCP struct {
	ServerName       string `toml:"server_name"`
	ServerVersion    string `toml:"server_version"`
	MaxResponseItems int    `toml:"max_response_items"`
	// Credential is used for tool calls that do not pass one.
	Credential string `toml:"credential"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	ServiceName   string `toml:"service_name"`
}

type Limits struct {
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	TTL               time.Duration `toml:"ttl"`
}

const (
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendStatic = "static"
)

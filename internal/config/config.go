package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/paularlott/cli"
)

const (
	GatewayTools  = "tools"
	GatewayMemory = "memory"
)

type Config struct {
	DataDir          string
	ListenAddr       string
	MCPAuthToken     string
	APIAuthToken     string
	StorageBackend   string
	StorageFormat    string
	Gateway          string
	ToolsDir         string
	GatewayTimeout   time.Duration
	SchedulerEnabled bool
}

var (
	dataDir          string
	listenAddr       string
	mcpAuthToken     string
	apiAuthToken     string
	storageBackend   string
	storageFormat    string
	gatewayKind      string
	toolsDir         string
	gatewayTimeout   int
	schedulerEnabled bool
)

func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "data-dir",
			Usage:        "Data directory path",
			EnvVars:      []string{"DESKD_DATA_DIR"},
			DefaultValue: filepath.Join(".", "data"),
			AssignTo:     &dataDir,
		},
		&cli.StringFlag{
			Name:         "addr",
			Usage:        "Server listen address",
			EnvVars:      []string{"DESKD_LISTEN_ADDR"},
			DefaultValue: "127.0.0.1:8090",
			AssignTo:     &listenAddr,
		},
		&cli.StringFlag{
			Name:     "mcp-token",
			Usage:    "MCP bearer token",
			EnvVars:  []string{"DESKD_MCP_TOKEN"},
			AssignTo: &mcpAuthToken,
		},
		&cli.StringFlag{
			Name:     "api-token",
			Usage:    "API bearer token",
			EnvVars:  []string{"DESKD_API_TOKEN"},
			AssignTo: &apiAuthToken,
		},
		&cli.StringFlag{
			Name:         "storage-backend",
			Usage:        "Storage backend (sqlite, file)",
			EnvVars:      []string{"DESKD_STORAGE_BACKEND"},
			DefaultValue: "sqlite",
			AssignTo:     &storageBackend,
		},
		&cli.StringFlag{
			Name:         "storage-format",
			Usage:        "File storage format (json, yaml)",
			EnvVars:      []string{"DESKD_STORAGE_FORMAT"},
			DefaultValue: "json",
			AssignTo:     &storageFormat,
		},
		&cli.StringFlag{
			Name:         "gateway",
			Usage:        "Device gateway (tools, memory)",
			EnvVars:      []string{"DESKD_GATEWAY"},
			DefaultValue: GatewayTools,
			AssignTo:     &gatewayKind,
		},
		&cli.StringFlag{
			Name:         "tools-dir",
			Usage:        "Directory containing multimonitortool and svcl",
			EnvVars:      []string{"DESKD_TOOLS_DIR"},
			DefaultValue: filepath.Join(".", "tools"),
			AssignTo:     &toolsDir,
		},
		&cli.IntFlag{
			Name:         "gateway-timeout",
			Usage:        "Per-call device tool timeout in seconds",
			EnvVars:      []string{"DESKD_GATEWAY_TIMEOUT"},
			DefaultValue: 15,
			AssignTo:     &gatewayTimeout,
		},
		&cli.BoolFlag{
			Name:         "scheduler",
			Usage:        "Run scheduled profile applications",
			EnvVars:      []string{"DESKD_SCHEDULER"},
			DefaultValue: true,
			AssignTo:     &schedulerEnabled,
		},
	}
}

func Load() *Config {
	return &Config{
		DataDir:          dataDir,
		ListenAddr:       listenAddr,
		MCPAuthToken:     mcpAuthToken,
		APIAuthToken:     apiAuthToken,
		StorageBackend:   storageBackend,
		StorageFormat:    storageFormat,
		Gateway:          gatewayKind,
		ToolsDir:         toolsDir,
		GatewayTimeout:   time.Duration(gatewayTimeout) * time.Second,
		SchedulerEnabled: schedulerEnabled,
	}
}

// Validate fills in defaults for empty fields and rejects unknown choices
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(".", "data")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8090"
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "sqlite"
	}
	if c.StorageFormat == "" {
		c.StorageFormat = "json"
	}
	if c.Gateway == "" {
		c.Gateway = GatewayTools
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = 15 * time.Second
	}

	if !slices.Contains([]string{"sqlite", "file"}, c.StorageBackend) {
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if !slices.Contains([]string{"json", "yaml"}, c.StorageFormat) {
		return fmt.Errorf("unknown storage format %q", c.StorageFormat)
	}
	if !slices.Contains([]string{GatewayTools, GatewayMemory}, c.Gateway) {
		return fmt.Errorf("unknown gateway %q", c.Gateway)
	}
	return nil
}

// IsMCPEnabled checks if MCP authentication is configured
func (c *Config) IsMCPEnabled() bool {
	return c.MCPAuthToken != ""
}

// IsAPIAuthEnabled checks if API authentication is configured
func (c *Config) IsAPIAuthEnabled() bool {
	return c.APIAuthToken != ""
}

// ServerURL is the base URL CLI commands use to reach a local server
func (c *Config) ServerURL() string {
	addr := c.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:8090"
	}
	if addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar          = "YV_CAPTURE_ENV"
	DefaultCutoutEndpoint  = "http://127.0.0.1:8787"
	ScreenshotBackendTab   = "browser"
	ScreenshotBackendPlain = "display"
	DefaultStageWidth      = 360
	DefaultStageHeight     = 480
	DefaultFetchMaxBytes   = 25 << 20
	DefaultApplyWorkers    = 2
)

type LoadOptions struct {
	EnvPathOverride    string
	ControlURLOverride string
	StorePathOverride  string
}

type Config struct {
	CutoutEndpoint    string
	CutoutTimeoutSec  int
	BrowserControlURL string
	BrowserHeadless   bool
	BrowserStartURL   string
	ScreenshotBackend string
	StorePath         string
	AssetsDir         string
	StageOutputPath   string
	StageWidth        int
	StageHeight       int
	HotkeyTop         string
	HotkeyBottom      string
	HotkeyClear       string
	EnableFileLogging bool
	CopyOnApply       bool
	ApplyWorkers      int
	FetchMaxBytes     int64
	PortStart         int
	PortEnd           int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use YV_CAPTURE_ENV env var as a path to a config file
	// Process environment wins over both; godotenv never overrides.
	envPath := strings.TrimSpace(opts.EnvPathOverride)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		CutoutEndpoint:    getEnvWithDefault("CUTOUT_ENDPOINT", DefaultCutoutEndpoint),
		CutoutTimeoutSec:  getEnvInt("CUTOUT_TIMEOUT_SEC", 0, 0),
		BrowserControlURL: os.Getenv("BROWSER_CONTROL_URL"),
		BrowserHeadless:   getEnvBool("BROWSER_HEADLESS"),
		BrowserStartURL:   os.Getenv("BROWSER_START_URL"),
		ScreenshotBackend: resolveScreenshotBackend(os.Getenv("SCREENSHOT_BACKEND")),
		StorePath:         getEnvWithDefault("STORE_PATH", defaultStorePath()),
		AssetsDir:         getEnvWithDefault("ASSETS_DIR", "assets"),
		StageOutputPath:   os.Getenv("STAGE_OUTPUT_PATH"),
		StageWidth:        getEnvInt("STAGE_WIDTH", DefaultStageWidth, 1),
		StageHeight:       getEnvInt("STAGE_HEIGHT", DefaultStageHeight, 1),
		HotkeyTop:         getEnvWithDefault("HOTKEY_TOP", "Ctrl+Alt+T"),
		HotkeyBottom:      getEnvWithDefault("HOTKEY_BOTTOM", "Ctrl+Alt+B"),
		HotkeyClear:       getEnvWithDefault("HOTKEY_CLEAR", "Ctrl+Alt+X"),
		EnableFileLogging: getEnvBool("ENABLE_FILE_LOGGING"),
		CopyOnApply:       getEnvBool("COPY_ON_APPLY"),
		ApplyWorkers:      getEnvInt("APPLY_WORKERS", DefaultApplyWorkers, 1),
		FetchMaxBytes:     int64(getEnvInt("FETCH_MAX_BYTES", DefaultFetchMaxBytes, 1)),
		PortStart:         getEnvInt("SINGLEINSTANCE_PORT_START", 0, 1),
		PortEnd:           getEnvInt("SINGLEINSTANCE_PORT_END", 0, 1),
	}

	if v := strings.TrimSpace(opts.ControlURLOverride); v != "" {
		cfg.BrowserControlURL = v
	}
	if v := strings.TrimSpace(opts.StorePathOverride); v != "" {
		cfg.StorePath = v
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "yv-capture", "store.json")
	}
	return "yv_capture_store.json"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// getEnvInt returns defaultValue when the variable is unset, unparsable or below min.
func getEnvInt(key string, defaultValue, min int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return defaultValue
	}
	return n
}

func resolveScreenshotBackend(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ScreenshotBackendPlain:
		return ScreenshotBackendPlain
	default:
		return ScreenshotBackendTab
	}
}

package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/drummonds/pagevision/engine/pdfrenderer"
	"github.com/drummonds/pagevision/engine/smartresize"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string
	IngressPath      string
	OutputPath       string
	IngressInterval  int // minutes
	IngressDelete    bool
	RenderConfig
	InferenceConfig
}

// RenderConfig stores the rasterization and normalization settings
type RenderConfig struct {
	PDFRenderer  string
	TargetDPI    float64
	NativeDPI    float64
	MaxDimension int
	ImageFactor  int
	MinPixels    int
	MaxPixels    int
	ImageFormat  string
}

// ResizeOptions returns the dimension normalizer settings
func (c RenderConfig) ResizeOptions() smartresize.Options {
	return smartresize.Options{
		Factor:    c.ImageFactor,
		MinPixels: c.MinPixels,
		MaxPixels: c.MaxPixels,
	}
}

// RasterOptions returns the rasterizer settings
func (c RenderConfig) RasterOptions() pdfrenderer.RasterOptions {
	return pdfrenderer.RasterOptions{
		TargetDPI:    c.TargetDPI,
		NativeDPI:    c.NativeDPI,
		MaxDimension: c.MaxDimension,
	}
}

// DefaultRenderConfig matches the environment defaults
func DefaultRenderConfig() RenderConfig {
	resize := smartresize.DefaultOptions()
	raster := pdfrenderer.DefaultRasterOptions()
	return RenderConfig{
		PDFRenderer:  pdfrenderer.EngineFitz,
		TargetDPI:    raster.TargetDPI,
		NativeDPI:    raster.NativeDPI,
		MaxDimension: raster.MaxDimension,
		ImageFactor:  resize.Factor,
		MinPixels:    resize.MinPixels,
		MaxPixels:    resize.MaxPixels,
		ImageFormat:  "png",
	}
}

// InferenceConfig stores the settings for the OpenAI-compatible vision backend
type InferenceConfig struct {
	InferenceURL         string
	APIKey               string `json:"-"`
	InferenceModel       string
	InferenceTimeout     time.Duration
	InferenceTemperature float32
	InferenceTopP        float32
	InferenceMaxTokens   int
}

// InferenceEnabled reports whether an inference backend is configured
func (c InferenceConfig) InferenceEnabled() bool {
	return c.InferenceURL != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// absPath resolves a configured directory, falling back to the raw value
func absPath(logger *slog.Logger, key, defaultValue string) string {
	dir := filepath.ToSlash(getEnv(key, defaultValue))
	abs, err := filepath.Abs(dir)
	if err != nil {
		logger.Error("Failed creating absolute path", "key", key, "path", dir, "error", err)
		return dir
	}
	return abs
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	serverConfigLive := LoadServerConfig(logger)

	fmt.Println("\n========================================")
	fmt.Println("   pagevision - Page Normalization Service")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pagevision.log"))
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// LoadServerConfig reads every setting from the environment
func LoadServerConfig(logger *slog.Logger) ServerConfig {
	serverConfigLive := ServerConfig{}

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "pagevision")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "disable")
	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	// Ingress configuration
	serverConfigLive.IngressPath = absPath(logger, "INGRESS_PATH", "ingress")
	serverConfigLive.OutputPath = absPath(logger, "OUTPUT_PATH", "prepared")
	serverConfigLive.IngressInterval = getEnvInt("INGRESS_INTERVAL", 10)
	serverConfigLive.IngressDelete = getEnvBool("INGRESS_DELETE", false)

	// Rendering and normalization
	serverConfigLive.PDFRenderer = strings.ToLower(getEnv("PDF_RENDERER", "fitz"))
	serverConfigLive.TargetDPI = getEnvFloat("TARGET_DPI", 200)
	serverConfigLive.NativeDPI = getEnvFloat("NATIVE_DPI", 72)
	serverConfigLive.MaxDimension = getEnvInt("RASTER_MAX_DIMENSION", 4500)
	serverConfigLive.ImageFactor = getEnvInt("IMAGE_FACTOR", 28)
	serverConfigLive.MinPixels = getEnvInt("MIN_PIXELS", 3136)
	serverConfigLive.MaxPixels = getEnvInt("MAX_PIXELS", 11289600)
	serverConfigLive.ImageFormat = strings.ToLower(getEnv("IMAGE_FORMAT", "png"))
	logger.Info("Render configuration loaded",
		"renderer", serverConfigLive.PDFRenderer,
		"dpi", serverConfigLive.TargetDPI,
		"format", serverConfigLive.ImageFormat)

	// Inference backend
	serverConfigLive.InferenceURL = getEnv("INFERENCE_URL", "")
	serverConfigLive.APIKey = getEnv("API_KEY", "0")
	serverConfigLive.InferenceModel = getEnv("INFERENCE_MODEL", "")
	serverConfigLive.InferenceTimeout = time.Duration(getEnvInt("INFERENCE_TIMEOUT", 300)) * time.Second
	serverConfigLive.InferenceTemperature = float32(getEnvFloat("INFERENCE_TEMPERATURE", 0.1))
	serverConfigLive.InferenceTopP = float32(getEnvFloat("INFERENCE_TOP_P", 0.9))
	serverConfigLive.InferenceMaxTokens = getEnvInt("INFERENCE_MAX_TOKENS", 32768)
	if serverConfigLive.InferenceEnabled() {
		logger.Info("Inference backend configured", "url", serverConfigLive.InferenceURL, "model", serverConfigLive.InferenceModel)
	} else {
		logger.Warn("INFERENCE_URL not set, OCR endpoint disabled")
	}

	return serverConfigLive
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: parseLevel(getEnv("LOG_LEVEL", "info"))}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pagevision.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

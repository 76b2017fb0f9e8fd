package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pagevision/config"
	database "github.com/drummonds/pagevision/database"
	engine "github.com/drummonds/pagevision/engine"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
	pdfrenderer.Logger = Logger
}

// @title pagevision API
// @version 1.0
// @description Page preparation service for vision OCR models
// @description Rasterizes PDFs, normalizes page dimensions and encodes pages as data URLs

// @host localhost:8000
// @BasePath /api
// @schemes http https

// @tag.name Prepare
// @tag.description Rasterization, normalization and transcription

// @tag.name Jobs
// @tag.description Job tracking

// @tag.name Admin
// @tag.description Health and ingress operations

// newServer wires the echo instance, renderer and inference client around db
func newServer(serverConfig config.ServerConfig, db database.Repository) (*engine.ServerHandler, error) {
	e := echo.New()
	e.HideBanner = true

	// Custom 404 handler for API endpoints
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}

		// For other errors, use default handler
		e.DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))
	e.Use(middleware.BodyLimit("256M"))

	pdfEngine, err := pdfrenderer.NewEngine(serverConfig.PDFRenderer)
	if err != nil {
		return nil, fmt.Errorf("unable to start PDF renderer %q: %w", serverConfig.PDFRenderer, err)
	}
	Logger.Info("PDF renderer created", "engine", pdfEngine.Name())

	serverHandler := &engine.ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Preparer: engine.NewPreparer(pdfEngine, serverConfig.RasterOptions(),
			serverConfig.ResizeOptions(), serverConfig.ImageFormat),
	}

	if serverConfig.InferenceEnabled() {
		client, err := engine.NewInferenceClient(serverConfig.InferenceConfig)
		if err != nil {
			Logger.Warn("Inference backend unavailable, OCR endpoint disabled", "error", err)
		} else {
			serverHandler.Inference = client
		}
	}

	serverHandler.AddAPIRoutes()
	return serverHandler, nil
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("🚀  EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Database will be destroyed on exit")
		fmt.Println("• Job history is not kept between runs")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	// Setup database (handles ephemeral, postgres, cockroachdb, sqlite)
	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Unable to setup database", "error", err)
		fmt.Println("Unable to setup database:", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	serverHandler, err := newServer(serverConfig, db)
	if err != nil {
		Logger.Error("Unable to create server", "error", err)
		fmt.Println("Unable to create server:", err)
		os.Exit(1)
	}
	defer serverHandler.Preparer.Engine.Close()

	if err := serverHandler.StartupChecks(); err != nil { //Run all the sanity checks
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	Logger.Info("Startup checks complete")
	scheduler := serverHandler.InitializeSchedules() //initialize all the cron jobs
	defer scheduler.Stop()

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = serverHandler.Echo.Start(addr)

		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			serverConfig.ListenAddrPort = nextPort(serverConfig.ListenAddrPort)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil && startErr != http.ErrServerClosed {
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			break
		}
	}
}

// nextPort returns port+1, or the input unchanged when it is not a number
func nextPort(port string) string {
	portNum := 0
	if _, err := fmt.Sscanf(port, "%d", &portNum); err != nil {
		return port
	}
	return fmt.Sprintf("%d", portNum+1)
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "address already in use")
}

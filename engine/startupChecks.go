package engine

import (
	"fmt"
	"os"

	"github.com/drummonds/pagevision/config"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig := serverHandler.ServerConfig
	if err := directoryChecks("ingress", serverConfig.IngressPath); err != nil {
		return err
	}
	if err := directoryChecks("output", serverConfig.OutputPath); err != nil {
		return err
	}
	rendererChecks(serverHandler.Preparer)
	inferenceChecks(serverConfig.InferenceConfig)
	return nil
}

func rendererChecks(preparer *Preparer) {
	if preparer == nil || preparer.Engine == nil {
		Logger.Warn("No PDF renderer available, only image inputs can be prepared")
		return
	}
	Logger.Info("PDF renderer ready", "engine", preparer.Engine.Name(),
		"dpi", preparer.rasterizer().Options.TargetDPI, "maxDimension", preparer.rasterizer().Options.MaxDimension)
}

func inferenceChecks(cfg config.InferenceConfig) {
	if !cfg.InferenceEnabled() {
		Logger.Info("Inference backend not configured, OCR functionality will be unavailable")
		return
	}
	if cfg.InferenceModel == "" {
		Logger.Warn("INFERENCE_MODEL is not set, OCR will be disabled", "url", cfg.InferenceURL)
		return
	}
	Logger.Info("Inference backend configured, OCR enabled", "url", cfg.InferenceURL, "model", cfg.InferenceModel)
}

// directoryChecks ensures a working directory exists, creating it when missing
func directoryChecks(name, path string) error {
	if path == "" {
		Logger.Warn("Path not configured", "directory", name)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating directory", "directory", name, "path", path)
			if err := os.MkdirAll(path, 0755); err != nil {
				Logger.Error("Failed to create directory", "directory", name, "path", path, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Error checking directory", "directory", name, "path", path, "error", err)
		return err
	}

	if !info.IsDir() {
		Logger.Error("Path exists but is not a directory", "directory", name, "path", path)
		return fmt.Errorf("%s path is not a directory: %s", name, path)
	}

	Logger.Info("Directory exists", "directory", name, "path", path)
	return nil
}

package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pagevision/database"
	"github.com/drummonds/pagevision/engine/encoder"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
)

// errIngressRunning is recorded on a job that starts while another ingress run is active
var errIngressRunning = errors.New("ingress job already running")

// ingressJobFunc is the scheduled entry point, it creates its own tracking job
func (serverHandler *ServerHandler) ingressJobFunc() {
	// Add panic recovery to prevent entire application crash
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in ingress job", "panic", r)
		}
	}()

	job, err := serverHandler.DB.CreateJob(database.JobTypeIngestion, "Scheduled ingress preparation")
	if err != nil {
		Logger.Error("Failed to create ingestion job", "error", err)
		return
	}
	serverHandler.ingressJobFuncWithTracking(job.ID)
}

// ingressJobFuncWithTracking prepares every file in the ingress folder and records progress on jobID
func (serverHandler *ServerHandler) ingressJobFuncWithTracking(jobID ulid.ULID) {
	db := serverHandler.DB
	serverConfig := serverHandler.ServerConfig
	if !serverHandler.ingressRunning.CompareAndSwap(false, true) {
		Logger.Warn("Skipping ingress run, another run is still active", "jobID", jobID)
		db.UpdateJobError(jobID, errIngressRunning.Error())
		return
	}
	defer serverHandler.ingressRunning.Store(false)
	// Add panic recovery and update job status on panic
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in ingress job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Scanning ingress folder"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}
	Logger.Info("Starting Ingress Job with tracking", "path", serverConfig.IngressPath, "jobID", jobID)

	var ingressFiles []string
	err := filepath.Walk(serverConfig.IngressPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || path == serverConfig.IngressPath {
			return nil
		}
		if !isProcessableDocument(path) {
			Logger.Debug("Skipping unsupported file", "path", path)
			return nil
		}
		if !serverConfig.IngressDelete && alreadyPrepared(path, serverHandler.outputDir(path)) {
			Logger.Debug("Skipping already prepared file", "path", path)
			return nil
		}
		ingressFiles = append(ingressFiles, path)
		return nil
	})
	if err != nil {
		Logger.Error("Error scanning ingress folder", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Scan failed: %v", err))
		return
	}

	summary := database.JobSummary{FilesTotal: len(ingressFiles)}
	if summary.FilesTotal == 0 {
		Logger.Info("No files to process in ingress folder")
		summary.Details = "No files found"
		completeJob(db, &database.Job{ID: jobID}, summary)
		return
	}

	Logger.Info("Found files to process", "count", summary.FilesTotal)
	for i, filePath := range ingressFiles {
		pages, err := serverHandler.ingestFileWithSteps(filePath, jobID, i, summary.FilesTotal)
		if err != nil {
			Logger.Error("Failed to prepare document", "filePath", filePath, "error", err)
			summary.Errors++
			continue
		}
		summary.FilesProcessed++
		summary.PagesPrepared += pages
	}

	if serverConfig.IngressDelete {
		deleteEmptyIngressFolders(serverConfig.IngressPath)
	}

	completeJob(db, &database.Job{ID: jobID}, summary)
	Logger.Info("Ingestion job completed", "jobID", jobID, "processed", summary.FilesProcessed,
		"total", summary.FilesTotal, "pages", summary.PagesPrepared, "errors", summary.Errors)
}

// ingestFileWithSteps prepares one ingress file and returns the number of pages written.
// Step 1: rasterize and normalize
// Step 2: write page images to the output folder
// Step 3: record the pages on the job
// Step 4: remove the source when INGRESS_DELETE is set
func (serverHandler *ServerHandler) ingestFileWithSteps(filePath string, jobID ulid.ULID, fileNum, totalFiles int) (int, error) {
	db := serverHandler.DB
	fileName := filepath.Base(filePath)
	baseProgress := fileNum * 100 / totalFiles
	stepSize := 100 / totalFiles / 4

	stepMsg := fmt.Sprintf("[%d/%d] %s - Step 1: Rendering pages", fileNum+1, totalFiles, fileName)
	db.UpdateJobProgress(jobID, baseProgress, stepMsg)
	pages, err := PrepareFile(serverHandler.Preparer, filePath, 0, pdfrenderer.AllPages())
	if err != nil {
		return 0, fmt.Errorf("step 1 failed (prepare): %w", err)
	}

	stepMsg = fmt.Sprintf("[%d/%d] %s - Step 2: Writing %d pages", fileNum+1, totalFiles, fileName, len(pages))
	db.UpdateJobProgress(jobID, baseProgress+stepSize, stepMsg)
	outputPaths, err := WritePageImages(serverHandler.outputDir(filePath), pages)
	if err != nil {
		return 0, fmt.Errorf("step 2 failed (write pages): %w", err)
	}

	stepMsg = fmt.Sprintf("[%d/%d] %s - Step 3: Recording pages", fileNum+1, totalFiles, fileName)
	db.UpdateJobProgress(jobID, baseProgress+2*stepSize, stepMsg)
	if err := db.SavePreparedPages(pageRecords(jobID, fileName, pages, outputPaths)); err != nil {
		// the images are on disk, a missing record should not fail the file
		Logger.Error("Failed to record prepared pages", "filePath", filePath, "error", err)
	}

	if serverHandler.ServerConfig.IngressDelete {
		stepMsg = fmt.Sprintf("[%d/%d] %s - Step 4: Removing source", fileNum+1, totalFiles, fileName)
		db.UpdateJobProgress(jobID, baseProgress+3*stepSize, stepMsg)
		if err := os.Remove(filePath); err != nil {
			Logger.Error("Failed to remove ingress file", "filePath", filePath, "error", err)
		}
	}

	Logger.Info("Prepared ingress file", "filePath", filePath, "pages", len(pages))
	return len(pages), nil
}

// outputDir is OUTPUT_PATH/<path relative to INGRESS_PATH>, so report.pdf and report.png stay apart
func (serverHandler *ServerHandler) outputDir(filePath string) string {
	rel, err := filepath.Rel(serverHandler.ServerConfig.IngressPath, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(filePath)
	}
	return filepath.Join(serverHandler.ServerConfig.OutputPath, rel)
}

// alreadyPrepared reports whether outputDir was written after the source was last modified
func alreadyPrepared(sourcePath, outputDir string) bool {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	outInfo, err := os.Stat(outputDir)
	if err != nil || !outInfo.IsDir() {
		return false
	}
	return !outInfo.ModTime().Before(sourceInfo.ModTime())
}

// WritePageImages saves each normalized page as page_<NNN>.<ext> and returns the paths
func WritePageImages(outputDir string, pages []PreparedPage) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(pages))
	for _, page := range pages {
		if page.Image == nil {
			return nil, fmt.Errorf("page %d has no image", page.Index)
		}
		format, err := encoder.ParseFormat(page.Format)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(outputDir, fmt.Sprintf("page_%03d.%s", page.Index, encoder.Extension(format)))
		if err := imaging.Save(page.Image, path); err != nil {
			return nil, fmt.Errorf("unable to save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func deleteEmptyIngressFolders(path string) {
	Logger.Info("Running cleanup on ingress folder", "path", path)
	var emptyDirs []string
	err := filepath.Walk(path, func(currentFile string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() || currentFile == path {
			return nil
		}
		f, err := os.Open(currentFile)
		if err != nil {
			return nil
		}
		defer f.Close()
		if _, err := f.Readdirnames(1); err == io.EOF {
			emptyDirs = append(emptyDirs, currentFile)
		}
		return nil
	})
	if err != nil {
		Logger.Error("Error cleaning ingress folder", "path", path, "error", err)
	}
	for _, dir := range emptyDirs {
		Logger.Debug("Removing Empty Folder", "dir", dir)
		os.Remove(dir)
	}
}

package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// jobRetention is how long finished jobs and their page records are kept
const jobRetention = 30 * 24 * time.Hour

// InitializeSchedules starts the ingress and job cleanup cron jobs and returns the scheduler
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.IngressInterval
	if interval <= 0 {
		interval = 10
	}

	// Run ingress job immediately at startup in a goroutine
	Logger.Info("Running ingress job at startup")
	go serverHandler.ingressJobFunc()

	c := cron.New()
	var ingressJob cron.Job
	ingressJob = cron.FuncJob(serverHandler.ingressJobFunc)
	ingressJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(ingressJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), ingressJob); err != nil {
		Logger.Error("Unable to schedule ingress job", "error", err)
	}
	Logger.Info("Adding Ingress Job scheduler", "interval_minutes", interval)

	if _, err := c.AddFunc("@daily", serverHandler.cleanupJobFunc); err != nil {
		Logger.Error("Unable to schedule job cleanup", "error", err)
	}
	c.Start()
	return c
}

// cleanupJobFunc removes finished jobs older than jobRetention
func (serverHandler *ServerHandler) cleanupJobFunc() {
	deleted, err := serverHandler.DB.DeleteOldJobs(jobRetention)
	if err != nil {
		Logger.Error("Failed to delete old jobs", "error", err)
		return
	}
	Logger.Info("Deleted old jobs", "count", deleted)
}

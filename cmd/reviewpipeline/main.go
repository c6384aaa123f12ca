// Command reviewpipeline runs the auditable pull-request review
// pipeline: it loads configuration, builds and validates the execution
// contract, optionally connects a shared Postgres store, wires every
// process-wide singleton and the orchestrator, and serves the HTTP API
// until terminated.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/api"
	"github.com/sealedreview/reviewpipeline/pkg/attestation"
	"github.com/sealedreview/reviewpipeline/pkg/config"
	"github.com/sealedreview/reviewpipeline/pkg/contract"
	"github.com/sealedreview/reviewpipeline/pkg/decision"
	"github.com/sealedreview/reviewpipeline/pkg/fault"
	"github.com/sealedreview/reviewpipeline/pkg/idempotency"
	"github.com/sealedreview/reviewpipeline/pkg/merkleindex"
	"github.com/sealedreview/reviewpipeline/pkg/metrics"
	"github.com/sealedreview/reviewpipeline/pkg/orchestrator"
	"github.com/sealedreview/reviewpipeline/pkg/permit"
	"github.com/sealedreview/reviewpipeline/pkg/review"
	"github.com/sealedreview/reviewpipeline/pkg/sharedstore"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "./deploy/config.yaml"), "Path to the YAML configuration file")
	envPath := flag.String("env-file", getEnv("ENV_FILE", "./deploy/.env"), "Path to a dotenv file carrying secrets")
	flag.Parse()

	logger := slog.Default()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		logger.Error("configuration failed to load", "error", err)
		os.Exit(1)
	}

	activeContract := contract.Build(time.Now())
	liveContract := contract.Build(activeContract.CreatedAt)
	validation := contract.Validate(activeContract, liveContract)
	if !validation.OK() {
		logger.Error("execution contract validation failed at boot")
		os.Stderr.WriteString(contract.DiagnosticDump(validation))
		os.Exit(1)
	}
	logger.Info("execution contract validated", "version", activeContract.Version, "contract_hash", activeContract.ContractHash)

	ctx := context.Background()

	singletons, sharedStore := buildSingletons(ctx, cfg, activeContract, logger)
	if sharedStore != nil {
		defer sharedStore.Close()
	}

	collaborator := review.NewCollaborator(
		newHTTPLLMClient(getEnv("LLM_API_URL", "http://localhost:9090/generate"), cfg.LLMAPIKey),
		singletons.LLMPermit,
		singletons.Faults,
	)

	gh := newGitHubClient(getEnv("GITHUB_TOKEN", ""))
	o := orchestrator.New(singletons, gh, newDefaultFilter(), newRegexClassifier(), collaborator, gh)

	server := api.NewServer(cfg.WebhookSharedSecret, o, singletons.History, singletons.MerkleIndex, singletons.Metrics)

	addr := ":" + strconv.Itoa(cfg.Port)
	logger.Info("starting HTTP server", "addr", addr, "instance_mode", singletons.InstanceMode)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received, draining in-flight requests")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server exited unexpectedly", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down cleanly")
}

// buildSingletons wires every process-wide dependency orchestrator.Singletons
// needs, preferring the shared-store backend when cfg names a DSN and
// falling back to the in-memory one (with instance_mode "degraded") if
// the connection cannot be established — spec.md §4.14's "shared-store
// unavailable at boot is not fatal" rule.
func buildSingletons(ctx context.Context, cfg *config.Config, activeContract contract.ExecutionContract, logger *slog.Logger) (orchestrator.Singletons, *sharedstore.Store) {
	metricsReg := metrics.New()

	s := orchestrator.Singletons{
		Contract:              orchestrator.ContractIdentity{Version: activeContract.Version, Hash: activeContract.ContractHash},
		Faults:                fault.NewController(cfg.FaultsEnabled, cfg.FaultTriggers, time.Now().UnixNano()),
		Ledger:                attestation.NewLedger(),
		MerkleIndex:           merkleindex.New(),
		Metrics:               metricsReg,
		GateHighCountOverride: cfg.GateHighCountOverride,
	}

	var store *sharedstore.Store
	if cfg.SharedStoreDSN != "" {
		var err error
		store, err = sharedstore.Open(ctx, sharedstore.Config{DSN: cfg.SharedStoreDSN})
		if err != nil {
			logger.Warn("shared store unavailable at boot, falling back to in-memory backends in degraded mode", "error", err)
		}
	}

	pipelinePermit := permit.NewLocalSemaphore(cfg.PipelinePermitCapacity)
	llmPermit := permit.NewLocalSemaphore(cfg.LLMPermitCapacity)
	guard := idempotency.NewLocalGuard(cfg.IdempotencyTTL, cfg.IdempotencyMaxEntries)
	history := decision.History(decision.NewLocalHistory())

	if store != nil {
		s.SharedStoreEnabled = true
		s.SharedStoreHealthy = store.Health(ctx).Healthy
		if s.SharedStoreHealthy {
			s.InstanceMode = "distributed"
			s.PipelinePermit = permit.NewSharedSemaphore(store, "pipeline", cfg.PipelinePermitCapacity)
			s.LLMPermit = permit.NewSharedSemaphore(store, "llm", cfg.LLMPermitCapacity)
			s.IdempotencyGuard = idempotency.NewSharedGuard(store, cfg.IdempotencyTTL)
			history = decision.NewSharedHistory(store, jsonCodec{})
		} else {
			s.InstanceMode = "degraded"
		}
	} else if cfg.SharedStoreDSN != "" {
		s.SharedStoreEnabled = true
		s.SharedStoreHealthy = false
		s.InstanceMode = "degraded"
	} else {
		s.InstanceMode = "single-instance"
	}

	if s.PipelinePermit == nil {
		s.PipelinePermit = pipelinePermit
	}
	if s.LLMPermit == nil {
		s.LLMPermit = llmPermit
	}
	if s.IdempotencyGuard == nil {
		s.IdempotencyGuard = guard
	}
	s.History = history

	metricsReg.SetSources(s.PipelinePermit, s.LLMPermit, s.IdempotencyGuard, cfg.IdempotencyMaxEntries, cfg.IdempotencyTTL)
	metricsReg.SetSharedStoreState(s.SharedStoreEnabled, s.SharedStoreHealthy, metrics.ShareStoreMode(s.InstanceMode))

	return s, store
}


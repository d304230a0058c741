// Command claimsctl is the operator control surface for the claims engine:
// start/inspect/cancel sync jobs, run a matching pass, and rebuild a
// seller's Evidence Document Index, grounded on the teacher's
// core/cmd/example tool-wiring style but dispatched as flag-based
// subcommands since nothing in the retrieval pack pulls in a CLI framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	stdsync "sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clarioclaims/engine/candidate"
	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformconfig"
	"github.com/clarioclaims/engine/internal/platformerr"
	"github.com/clarioclaims/engine/internal/platformlog"
	"github.com/clarioclaims/engine/internal/platformtelemetry"
	"github.com/clarioclaims/engine/ledger"
	"github.com/clarioclaims/engine/match"
	"github.com/clarioclaims/engine/matchindex"
	"github.com/clarioclaims/engine/normalize"
	"github.com/clarioclaims/engine/progress"
	"github.com/clarioclaims/engine/provider"
	"github.com/clarioclaims/engine/provider/providertest"
	"github.com/clarioclaims/engine/provider/throttle"
	"github.com/clarioclaims/engine/router"
	"github.com/clarioclaims/engine/sync"
)

// Exit codes per the control surface's documented contract.
const (
	exitOK        = 0
	exitInternal  = 1
	exitUsage     = 2
	exitNotFound  = 3
	exitConflict  = 4
	exitTransient = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	cfg, err := platformconfig.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitInternal
	}
	logger := platformlog.New("claimsctl")

	ctx := context.Background()
	tel, err := platformtelemetry.New(ctx, platformtelemetry.FromEnv("claimsctl"), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telemetry:", err)
		return exitInternal
	}
	defer tel.Shutdown(ctx)

	app := newApp(cfg, logger)

	switch args[0] {
	case "sync":
		return app.sync(args[1:])
	case "match":
		return app.match(args[1:])
	case "reindex":
		return app.reindex(args[1:])
	default:
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  claimsctl sync start <seller> [--priority=N] [--window=18m]
  claimsctl sync status <seller|job_id>
  claimsctl sync cancel <job_id>
  claimsctl match run <seller>
  claimsctl reindex documents <seller>`)
}

// app wires every collaborator the reference CLI needs. Jobs, queue, ledger
// and routing state are in-memory so the control surface works with zero
// external services; the progress publisher always gets a Redis client for
// cfg.RedisAddr (localhost:6379 unless REDIS_ADDR overrides it), and its
// publish failures are logged rather than returned.
type app struct {
	cfg    *platformconfig.Config
	logger platformlog.ComponentAwareLogger

	jobs   sync.JobStore
	queue  sync.Queue
	orch   *sync.Orchestrator
	pub    *progress.Publisher
	ledger ledger.Store
	norm   *normalize.Normalizer
	gen    *candidate.Generator

	candidatesMu stdsync.Mutex
	documents    map[domain.SellerID][]domain.EvidenceDocument
	candidates   map[domain.SellerID][]domain.ClaimCandidate
	states       *router.MemoryState
	router       *router.Router
}

func newApp(cfg *platformconfig.Config, logger platformlog.ComponentAwareLogger) *app {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	jobs := sync.NewMemoryJobStore()
	queue := sync.NewMemoryQueue()
	pub := progress.NewPublisher(redisClient, progress.AllowAll{}, logger)

	fake := providertest.New("demo_provider")

	// Every provider call runs through the Throttled Client; the attempt
	// callback doubles as the metric feed so rate-limit pressure is visible
	// without grepping logs.
	instruments := platformtelemetry.NewInstruments("claimsctl")
	throttleCfg := throttle.DefaultConfig()
	throttleCfg.Logger = logger.WithComponent("throttle")
	throttleCfg.OnAttempt = func(ev throttle.AttemptEvent) {
		ctx := context.Background()
		_ = instruments.AddCounter(ctx, "provider_attempts_total", 1, metric.WithAttributes(
			attribute.String("provider", ev.Provider),
			attribute.String("endpoint_class", ev.EndpointClass),
			attribute.Bool("retryable", ev.Retryable),
		))
		_ = instruments.RecordHistogram(ctx, "provider_attempt_duration_ms", float64(ev.Latency.Milliseconds()))
	}
	adapter := throttle.NewAdapter(fake, throttle.New(throttleCfg), nil)

	store := ledger.NewMemoryStore(cfg.BatchSize)
	norm := normalize.New(fake.Name())
	gen := candidate.New()

	a := &app{
		cfg: cfg, logger: logger,
		jobs: jobs, queue: queue, pub: pub,
		ledger: store, norm: norm, gen: gen,
		documents:  make(map[domain.SellerID][]domain.EvidenceDocument),
		candidates: make(map[domain.SellerID][]domain.ClaimCandidate),
	}

	// onRecord realizes the spec's data flow for every task the
	// orchestrator runs: Provider Adapter -> Normalizer -> Ledger Store ->
	// Candidate Generator, appending freshly derived candidates for the
	// next "match run" pass.
	onRecord := func(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, window domain.Window, raw []provider.RawRecord) error {
		exists := func(s domain.SellerID, rt domain.ReportType, externalID string) bool {
			return a.ledger.Exists(ctx, s, rt, externalID)
		}
		records, errs := a.norm.Normalize(seller, fake.Name(), reportType, window, raw, exists, time.Now())
		for _, e := range errs {
			a.logger.Warn("normalize row failed", map[string]interface{}{"seller": string(seller), "report_type": string(reportType), "error": e.Error()})
		}
		if len(records) == 0 {
			return nil
		}
		if _, err := a.ledger.Store(ctx, seller, reportType, records, window, string(domain.JobKindFullHistoricalSync)); err != nil {
			return err
		}
		a.candidatesMu.Lock()
		a.candidates[seller] = append(a.candidates[seller], a.gen.Generate(records)...)
		a.candidatesMu.Unlock()
		return nil
	}

	a.orch = sync.NewOrchestrator(queue, jobs, adapter, onRecord, pub, cfg, logger)

	states := router.NewMemoryState()
	a.states = states
	a.router = router.New(router.Thresholds{Auto: cfg.AutoThreshold, Prompt: cfg.PromptThreshold}, states, states, states, states, pub)

	return a
}

func (a *app) sync(args []string) int {
	if len(args) < 2 {
		usage()
		return exitUsage
	}

	switch args[0] {
	case "start":
		fs := flag.NewFlagSet("sync start", flag.ContinueOnError)
		priority := fs.Int("priority", 0, "job priority")
		fs.String("window", "18m", "sync horizon (informational; see MONTHS_TO_SYNC)")
		if err := fs.Parse(args[2:]); err != nil {
			return exitUsage
		}

		seller := domain.SellerID(args[1])
		job, err := a.orch.Submit(context.Background(), seller, domain.JobKindFullHistoricalSync, domain.AllReportTypes, *priority)
		if err != nil {
			return a.report(err)
		}
		fmt.Printf("queued job %s for seller %s (%d tasks)\n", job.JobID, seller, job.Progress.Total)
		return exitOK

	case "status":
		job, err := a.jobs.Get(context.Background(), args[1])
		if err != nil {
			return a.report(err)
		}
		fmt.Printf("job %s: state=%s progress=%d/%d attempts=%d\n", job.JobID, job.State, job.Progress.Current, job.Progress.Total, job.Attempts)
		return exitOK

	case "cancel":
		if err := a.orch.Cancel(context.Background(), args[1]); err != nil {
			return a.report(err)
		}
		fmt.Printf("cancelled job %s\n", args[1])
		return exitOK

	default:
		usage()
		return exitUsage
	}
}

func (a *app) match(args []string) int {
	if len(args) < 2 || args[0] != "run" {
		usage()
		return exitUsage
	}
	seller := domain.SellerID(args[1])

	idx := matchindex.Build(seller, a.documents[seller])
	results := match.MatchBatch(a.candidates[seller], idx, time.Now())

	for _, m := range results {
		action, err := a.router.Route(context.Background(), seller, m)
		if err != nil {
			return a.report(err)
		}
		fmt.Printf("claim=%s document=%s confidence=%.3f action=%s\n", m.ClaimID, m.DocumentID, m.FinalConfidence, action)
	}
	fmt.Printf("matched %d/%d candidates\n", len(results), len(a.candidates[seller]))
	return exitOK
}

func (a *app) reindex(args []string) int {
	if len(args) < 2 || args[0] != "documents" {
		usage()
		return exitUsage
	}
	seller := domain.SellerID(args[1])
	matchindex.Build(seller, a.documents[seller])
	fmt.Printf("rebuilt index for seller %s over %d documents\n", seller, len(a.documents[seller]))
	return exitOK
}

// report maps a platformerr.Kind to the control surface's exit code
// contract, printing the error to stderr either way.
func (a *app) report(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	switch platformerr.KindOf(err) {
	case platformerr.NotFound:
		return exitNotFound
	case platformerr.Conflict:
		return exitConflict
	case platformerr.RateLimited, platformerr.Transient:
		return exitTransient
	case platformerr.Validation:
		return exitUsage
	default:
		return 1
	}
}

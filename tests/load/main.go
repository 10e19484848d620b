package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/contentpulse/backend/internal/ai"
	"github.com/contentpulse/backend/internal/cache"
	httpserver "github.com/contentpulse/backend/internal/http"
	"github.com/contentpulse/backend/internal/http/handlers"
	"github.com/contentpulse/backend/internal/pipeline"
	"github.com/contentpulse/backend/internal/promptctx"
	"github.com/contentpulse/backend/internal/quality"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/quota"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/service"
	"github.com/contentpulse/backend/internal/signals"
	"github.com/contentpulse/backend/internal/storage"
	"github.com/contentpulse/backend/internal/worker"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type tokenResult struct {
	NaiveTokens    int     `json:"naive_tokens"`
	BudgetedTokens int     `json:"budgeted_tokens"`
	ReductionPct   float64 `json:"reduction_pct"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	TokenTuning    tokenResult      `json:"token_tuning"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server *httptest.Server
	cancel context.CancelFunc
}

const benchToken = "bench-token"

func main() {
	productsTotal := flag.Int("products-total", 120, "total product create requests")
	productsConcurrency := flag.Int("products-concurrency", 16, "concurrency for product create requests")
	reportsTotal := flag.Int("reports-total", 200, "total report enqueue requests")
	reportsConcurrency := flag.Int("reports-concurrency", 24, "concurrency for report enqueue requests")
	pollTotal := flag.Int("poll-total", 240, "total report poll requests")
	pollConcurrency := flag.Int("poll-concurrency", 24, "concurrency for report poll requests")
	plansTotal := flag.Int("plans-total", 120, "total plan list requests")
	plansConcurrency := flag.Int("plans-concurrency", 16, "concurrency for plan list requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment()
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cancel()
	defer env.server.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	authHeaders := map[string]string{"Authorization": "Bearer " + benchToken}

	productsScenario := runScenario("products_create", *productsTotal, *productsConcurrency, func(index int) error {
		payload := map[string]any{
			"name":        fmt.Sprintf("Bench Product %d", index),
			"description": "load probe product",
		}
		_, err := postJSON(client, env.server.URL+"/v1/products", payload, authHeaders, http.StatusCreated)
		return err
	})

	// Seed one product per worker lane so report enqueues hit real ids.
	seedProducts := make([]string, 0, *reportsConcurrency)
	for i := 0; i < *reportsConcurrency; i++ {
		body, err := postJSON(client, env.server.URL+"/v1/products", map[string]any{
			"name":        fmt.Sprintf("Bench Seed %d", i),
			"description": "seed for report enqueue",
		}, authHeaders, http.StatusCreated)
		if err != nil {
			log.Fatalf("failed to seed benchmark product: %v", err)
		}
		productID, _ := body["product_id"].(string)
		seedProducts = append(seedProducts, productID)
	}

	reportIDs := make([]string, 0, *reportsTotal)
	var reportMu sync.Mutex
	reportsScenario := runScenario("reports_enqueue", *reportsTotal, *reportsConcurrency, func(index int) error {
		payload := map[string]any{
			"product_id": seedProducts[index%len(seedProducts)],
		}
		body, err := postJSON(client, env.server.URL+"/v1/reports", payload, authHeaders, http.StatusAccepted)
		if err != nil {
			return err
		}
		if reportID, _ := body["report_id"].(string); reportID != "" {
			reportMu.Lock()
			reportIDs = append(reportIDs, reportID)
			reportMu.Unlock()
		}
		return nil
	})

	pollScenario := scenarioResult{Name: "reports_poll"}
	if len(reportIDs) > 0 {
		pollScenario = runScenario("reports_poll", *pollTotal, *pollConcurrency, func(index int) error {
			reportID := reportIDs[index%len(reportIDs)]
			return getJSON(client, env.server.URL+"/v1/reports/"+reportID, authHeaders, http.StatusOK)
		})
	}

	plansScenario := runScenario("plans_list", *plansTotal, *plansConcurrency, func(index int) error {
		return getJSON(client, env.server.URL+"/v1/plans", nil, http.StatusOK)
	})

	tokenTuning := runTokenBudgetScenario()
	results := []scenarioResult{
		productsScenario,
		reportsScenario,
		pollScenario,
		plansScenario,
	}

	slo := map[string]bool{
		"report_enqueue_p95_le_2000ms": reportsScenario.P95MS <= 2000,
		"report_poll_p95_le_1000ms":    pollScenario.P95MS <= 1000,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		TokenTuning:    tokenTuning,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() (*benchmarkEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	repo := repository.NewMemoryReportsRepository()
	localQueue := queue.NewLocalQueue(4096, 3, logger)

	generation := service.NewGenerationService(service.GenerationDependencies{
		Router:    ai.NewModelRouter(ai.ModelRouterConfig{}),
		Client:    nil,
		Cache:     cache.NewSemanticCache(cache.Config{TTL: 10 * time.Minute, MaxEntries: 4000}),
		Validator: quality.NewOutputValidator(),
		Logger:    logger,
	})

	reportsService := service.NewReportsService(repo, localQueue, 0, logger)
	assetsService := service.NewAssetsService(service.AssetsDependencies{
		Repo:      repo,
		Producer:  localQueue,
		Generator: generation,
		Store:     storage.NewMemoryStore(),
		Logger:    logger,
	})
	gate := quota.NewGate(repo)

	api := handlers.NewAPI(reportsService, assetsService, gate, map[string]string{
		"bench-user": "advanced",
	})
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthTokens:     map[string]string{benchToken: "bench-user"},
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	orchestrator := pipeline.NewOrchestrator(
		repo,
		generation,
		signals.NewSerpClient(signals.SerpClientConfig{}),
		signals.NewTwitterClient(signals.TwitterClientConfig{}),
		signals.NewMediumClient(signals.MediumClientConfig{}),
		logger,
		pipeline.OrchestratorConfig{Seed: 11},
	)
	processor := worker.NewProcessor(localQueue, orchestrator, assetsService, logger)
	go processor.Start(ctx)

	server := httptest.NewServer(router)
	return &benchmarkEnv{
		server: server,
		cancel: cancel,
	}, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	result := scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
	return result
}

func postJSON(
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
	expectedStatus int,
) (map[string]any, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))
	if response.StatusCode != expectedStatus {
		return nil, fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(raw))
	}

	decoded := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return decoded, nil
}

func getJSON(client *http.Client, url string, headers map[string]string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

// runTokenBudgetScenario compares the budgeted snippet selection with a
// naive concatenate-everything estimate for a repetitive signal corpus.
func runTokenBudgetScenario() tokenResult {
	texts := []string{
		"Cliente pediu retorno ainda hoje sobre o status da entrega.",
		"Cliente pediu retorno ainda hoje sobre o status da entrega.",
		"Widget Day is trending with makers sharing build failures.",
		"Widget Day is trending with makers sharing build failures.",
		"Best widget tool comparisons keep ranking for long tail searches.",
		"Best widget tool comparisons keep ranking for long tail searches.",
		"3d printing fails thread collected thousands of replies overnight.",
		"3d printing fails thread collected thousands of replies overnight.",
		"Top publication tags this week include productivity and hardware.",
		"Top publication tags this week include productivity and hardware.",
	}

	snippets := make([]promptctx.Snippet, 0, len(texts))
	naiveTokens := 0
	for i, text := range texts {
		snippets = append(snippets, promptctx.Snippet{
			ID:    fmt.Sprintf("s-%d", i),
			Text:  text,
			Score: float64(len(texts) - i),
		})
		tokens := len([]rune(strings.TrimSpace(text))) / 4
		if tokens <= 0 {
			tokens = 1
		}
		naiveTokens += tokens
	}

	budgeted := promptctx.Build(promptctx.BuildInput{
		Task:     "headlines",
		Snippets: snippets,
	})

	reduction := 0.0
	if naiveTokens > 0 {
		reduction = (float64(naiveTokens-budgeted.TokenCount) / float64(naiveTokens)) * 100
	}

	return tokenResult{
		NaiveTokens:    naiveTokens,
		BudgetedTokens: budgeted.TokenCount,
		ReductionPct:   round2(reduction),
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

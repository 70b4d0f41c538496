package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trialscope/ctgov-client/internal/testutil"
	"github.com/trialscope/ctgov-client/pkg/client"
	"github.com/trialscope/ctgov-client/pkg/trials"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available for integration testing: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newStudyFixtures(n int) []string {
	records := make([]string, n)
	for i := 0; i < n; i++ {
		records[i] = testutil.Study(
			fmt.Sprintf("NCT%08d", i+1),
			"Integration Study",
			"RECRUITING",
			"Acme Therapeutics",
			"PHASE2",
		)
	}
	return records
}

// TestFullFetchFlow exercises the complete flow: pacing, cache miss, paged
// API requests, flattening, and the cache serving the repeat fetch.
func TestFullFetchFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockAPI := testutil.NewMockAPI()
	defer mockAPI.Close()

	mockAPI.SetHandler("/studies", testutil.PagedStudiesHandler(newStudyFixtures(12)))

	cfg := client.Config{
		BaseURL:            mockAPI.URL(),
		UserAgent:          "IntegrationTest/1.0.0 (test@example.com)",
		MaxRetries:         3,
		RetryDelay:         50 * time.Millisecond,
		Redis:              redisClient,
		CacheTTL:           time.Hour,
		MinRequestInterval: 20 * time.Millisecond,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fetcher := trials.NewFetcher(c)
	ctx := context.Background()

	query := trials.Query{
		Condition: "pompe disease",
		Status:    trials.StatusRecruiting,
		PageSize:  5,
	}

	// Fetch 1: every page comes from the API and lands in the cache.
	result, err := fetcher.Fetch(ctx, query)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if result.Len() != 12 {
		t.Errorf("First fetch rows = %d, want 12", result.Len())
	}

	apiRequests := mockAPI.GetRequestCount()
	if apiRequests != 3 {
		t.Errorf("API requests after first fetch = %d, want 3 (12 studies, page size 5)", apiRequests)
	}

	// Fetch 2: identical query, every page served from Redis.
	cached, err := fetcher.Fetch(ctx, query)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if cached.Len() != result.Len() {
		t.Errorf("Cached fetch rows = %d, want %d", cached.Len(), result.Len())
	}
	if got := mockAPI.GetRequestCount(); got != apiRequests {
		t.Errorf("API requests after cached fetch = %d, want %d (served from cache)", got, apiRequests)
	}

	// Row content survives the cache round trip.
	for i := 0; i < result.Len(); i++ {
		if result.Row(i)["nct_id"] != cached.Row(i)["nct_id"] {
			t.Errorf("Row %d nct_id differs between fetches: %v vs %v",
				i, result.Row(i)["nct_id"], cached.Row(i)["nct_id"])
		}
	}
}

// TestCacheExpiration verifies that stale entries fall back to the API.
func TestCacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockAPI := testutil.NewMockAPI()
	defer mockAPI.Close()

	mockAPI.SetHandler("/studies", testutil.PagedStudiesHandler(newStudyFixtures(2)))

	cfg := client.Config{
		BaseURL:    mockAPI.URL(),
		UserAgent:  "IntegrationTest/1.0.0",
		MaxRetries: 1,
		Redis:      redisClient,
		CacheTTL:   200 * time.Millisecond,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fetcher := trials.NewFetcher(c)
	ctx := context.Background()
	query := trials.Query{Condition: "asthma", PageSize: 10}

	if _, err := fetcher.Fetch(ctx, query); err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if got := mockAPI.GetRequestCount(); got != 1 {
		t.Fatalf("API requests = %d, want 1", got)
	}

	// Within the TTL: served from cache.
	if _, err := fetcher.Fetch(ctx, query); err != nil {
		t.Fatalf("Cached fetch failed: %v", err)
	}
	if got := mockAPI.GetRequestCount(); got != 1 {
		t.Errorf("API requests = %d, want 1 (cache fresh)", got)
	}

	time.Sleep(300 * time.Millisecond)

	// Past the TTL: back to the API.
	if _, err := fetcher.Fetch(ctx, query); err != nil {
		t.Fatalf("Fetch after expiry failed: %v", err)
	}
	if got := mockAPI.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2 (cache expired)", got)
	}
}

// TestRetryAgainstCache verifies that only successful responses are cached:
// a fetch that exhausts retries leaves nothing behind, and the next fetch
// succeeds once the API recovers.
func TestRetryAgainstCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockAPI := testutil.NewMockAPI()
	defer mockAPI.Close()

	records := newStudyFixtures(3)
	mockAPI.SetHandler("/studies", testutil.FlakyHandler(4, 503, testutil.PagedStudiesHandler(records)))

	cfg := client.Config{
		BaseURL:    mockAPI.URL(),
		UserAgent:  "IntegrationTest/1.0.0",
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		Redis:      redisClient,
		CacheTTL:   time.Hour,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fetcher := trials.NewFetcher(c)
	ctx := context.Background()
	query := trials.Query{Condition: "diabetes", PageSize: 10}

	// Both attempts hit a 503; the fetch fails and caches nothing.
	if _, err := fetcher.Fetch(ctx, query); err == nil {
		t.Fatal("Expected first fetch to fail while the API is down")
	}
	if got := mockAPI.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2 (retries exhausted)", got)
	}

	// The flaky handler has 2 failures left; this fetch spends them.
	if _, err := fetcher.Fetch(ctx, query); err == nil {
		t.Fatal("Expected second fetch to fail, flaky budget not yet spent")
	}

	result, err := fetcher.Fetch(ctx, query)
	if err != nil {
		t.Fatalf("Fetch after recovery failed: %v", err)
	}
	if result.Len() != 3 {
		t.Errorf("Rows = %d, want 3", result.Len())
	}
}

// TestVersionEndpoint fetches the API version through the full stack.
func TestVersionEndpoint(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mockAPI := testutil.NewMockAPI()
	defer mockAPI.Close()

	cfg := client.Config{
		BaseURL:    mockAPI.URL(),
		UserAgent:  "IntegrationTest/1.0.0",
		MaxRetries: 1,
		Redis:      redisClient,
		CacheTTL:   time.Hour,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	fetcher := trials.NewFetcher(c)

	info, err := fetcher.Version(context.Background())
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if info.APIVersion != "2.0.4" {
		t.Errorf("APIVersion = %q, want 2.0.4", info.APIVersion)
	}
	if info.DataTimestamp == "" {
		t.Error("DataTimestamp is empty")
	}

	// Version responses are cached like any other endpoint.
	if _, err := fetcher.Version(context.Background()); err != nil {
		t.Fatalf("Second Version failed: %v", err)
	}
	if got := mockAPI.GetRequestCount(); got != 1 {
		t.Errorf("API requests = %d, want 1 (version cached)", got)
	}
}

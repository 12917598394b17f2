//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmphub-lab/dmphub/internal/auth"
	"github.com/dmphub-lab/dmphub/internal/config"
	"github.com/dmphub-lab/dmphub/internal/core/storage/backend"
	"github.com/dmphub-lab/dmphub/internal/dmp"
	"github.com/dmphub-lab/dmphub/internal/dmpapi"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/notify"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/dmphub-lab/dmphub/internal/schema"
	"github.com/dmphub-lab/dmphub/internal/schema/formats/protobuf"
	"github.com/dmphub-lab/dmphub/internal/schema/formats/yaml"
	schemaStorage "github.com/dmphub-lab/dmphub/internal/schema/storage"
	"github.com/dmphub-lab/dmphub/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	testIssuer     = "https://auth.integration.test"
	testSigningKey = "integration-signing-key"
	testStream     = "dmphub:integration"
)

type integrationHarness struct {
	baseURL    string
	client     *http.Client
	tokens     *auth.TokenService
	db         *sql.DB
	redis      *redis.Client
	relay      *notify.Relay
	store      *backend.Backend
	cancel     context.CancelFunc
	serverDone chan error
}

func (h *integrationHarness) close(t *testing.T) {
	t.Helper()

	h.cancel()
	select {
	case <-h.serverDone:
	case <-time.After(5 * time.Second):
		t.Log("server shutdown timed out")
	}

	require.NoError(t, h.redis.Close())
	require.NoError(t, h.store.Close())
}

// startHarness runs the registry against throwaway Postgres and Redis
// containers. DMPHUB_TEST_DSN and DMPHUB_TEST_REDIS_URL point it at existing
// instances instead.
func startHarness(t *testing.T) *integrationHarness {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("DMPHUB_TEST_DSN")
	if dsn == "" {
		dsn = startPostgres(t)
	}
	redisURL := os.Getenv("DMPHUB_TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = startRedis(t)
	}

	store, err := backend.Open(ctx, config.StorageConfig{
		Backend:      "postgres",
		DSN:          dsn,
		MaxOpenConns: 10,
		MaxIdleConns: 10,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	resetDatabase(t, store.Postgres.DB())

	redisClient, err := notify.NewRedisClient(ctx, redisURL)
	require.NoError(t, err)
	require.NoError(t, redisClient.Del(ctx, testStream).Err())

	provenances := provenance.NewStore(store.Store)
	require.NoError(t, provenances.Put(ctx, &provenance.Provenance{Name: "dmptool", ClientIDs: []string{"dmptool-client"}}))
	require.NoError(t, provenances.Put(ctx, &provenance.Provenance{Name: "zenodo", ClientIDs: []string{"zenodo-client"}}))

	root := projectRoot(t)
	formatRegistry := schema.NewFormatRegistry()
	formatRegistry.RegisterFormat(schema.FormatProtobuf, protobuf.NewCompiler(), protobuf.NewValidator())
	formatRegistry.RegisterFormat(schema.FormatYaml, yaml.NewCompiler(), yaml.NewValidator())
	validator := schema.NewValidator(formatRegistry)
	contracts := schema.NewContractValidator(
		schema.NewRegistry(schemaStorage.NewFileSystemRepository(filepath.Join(root, "schemas"))),
		validator,
	)

	codec, err := identifier.NewCodec("doi.org")
	require.NoError(t, err)

	outbox := store.Outbox()
	sink := notify.NewRedisPublisher(redisClient, notify.RedisConfig{Stream: testStream})
	relay := notify.NewRelay(outbox, sink, notify.RelayOptions{Name: "integration", BatchSize: 100})

	registry := dmp.NewService(store.Store, codec, contracts, notify.NewOutboxPublisher(outbox), dmp.Config{
		Shoulder:          "10.80030",
		ConditionalWrites: true,
		APIBaseURL:        "http://registry.test/v1",
	})
	resolver := provenance.NewResolver(provenances, provenance.ResolverConfig{
		TrustedIssuers: []string{testIssuer},
		ClientAliases: map[string]string{
			"dmptool-client": "dmptool",
			"zenodo-client":  "zenodo",
		},
	})
	tokens := auth.NewTokenService(testSigningKey, testIssuer)

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	httpServer := server.New(addr, store, nil, "release")
	api := httpServer.Engine.Group("", auth.Middleware(tokens))
	dmpapi.NewService(registry, resolver, 1).RegisterRoutes(api)

	runCtx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- httpServer.Run(runCtx) }()

	baseURL := "http://" + addr
	waitForHealthy(t, baseURL)

	return &integrationHarness{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		tokens:     tokens,
		db:         store.Postgres.DB(),
		redis:      redisClient,
		relay:      relay,
		store:      store,
		cancel:     cancel,
		serverDone: serverDone,
	}
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("dmphub"),
		tcpostgres.WithUsername("dmphub"),
		tcpostgres.WithPassword("dmphub"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	return dsn
}

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	return url
}

func waitForHealthy(t *testing.T, baseURL string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server did not become healthy at %s", baseURL)
}

// do sends payload as clientID (anonymous when empty) and returns the status
// and body.
func (h *integrationHarness) do(t *testing.T, method, path, clientID string, payload interface{}) (int, []byte) {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.baseURL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		token, err := h.tokens.Issue(clientID, "integration-user", time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBody
}

func resetDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx, `TRUNCATE TABLE dmp_items, change_events, relay_checkpoints`)
	require.NoError(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRoot(t *testing.T) string {
	t.Helper()

	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	return root
}

// Package e2e runs the inventory HTTP API against a real PostgreSQL instance.
// The suite starts a container with testcontainers-go, applies the migrations from
// the store package and serves the application handler from an httptest.Server.
// Tables are truncated before every test.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/inventory/internal/app"
	"github.com/abgdnv/inventory/internal/config"
	"github.com/abgdnv/inventory/internal/service"
	"github.com/abgdnv/inventory/internal/store"
	"github.com/abgdnv/inventory/pkg/messaging"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "INVENTORY_SKIP_INTEGRATION_TESTS"

const (
	productURL = "/products"
	saleURL    = "/sales"
)

type InventoryE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	server      *httptest.Server
	httpClient  *http.Client
	events      *messaging.AsyncPublisher
	stopEvents  context.CancelFunc
	eventsDone  sync.WaitGroup
	logger      *slog.Logger
	ctx         context.Context
}

// testConfig carries only the settings the handler and engines read.
func testConfig() *config.Config {
	var cfg config.Config
	cfg.Events.Buffer = 64
	cfg.Events.Workers = 1
	cfg.Events.DrainTimeout = time.Second
	cfg.Health.Interval = time.Minute
	cfg.Health.Timeout = time.Second
	return &cfg
}

func (s *InventoryE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("inventory"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgx pool")

	for i := range 10 {
		s.logger.Info("Pinging E2E PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	// the file source reads the same migrations the binary embeds
	wd, _ := os.Getwd()
	sourceURL := "file://" + filepath.Join(wd, "..", "..", "store", "migrations")
	m, err := migrate.New(sourceURL, connStr)
	require.NoError(s.T(), err, "Failed to create migrate instance")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_, _ = m.Close()
		require.NoError(s.T(), err, "Failed to apply migrations")
	}
	s.logger.Info("Migrations applied for E2E tests")

	deps := app.SetupDependencies(store.NewPgStore(s.dbPool), messaging.NewLogPublisher(s.logger), testConfig(), s.logger)
	s.events = deps.Events
	var eventsCtx context.Context
	eventsCtx, s.stopEvents = context.WithCancel(s.ctx)
	s.eventsDone.Add(1)
	go func() {
		defer s.eventsDone.Done()
		_ = s.events.Run(eventsCtx)
	}()

	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

func (s *InventoryE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.stopEvents != nil {
		s.stopEvents()
		s.eventsDone.Wait()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

func (s *InventoryE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE sales_products, sales, products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
}

func TestInventoryE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping integration tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(InventoryE2ESuite))
}

func (s *InventoryE2ESuite) TestSaleLifecycle() {
	t := s.T()

	// given
	product, status := s.createProduct(productPayload{Name: "Widget-1", Quantity: 10})
	require.Equal(t, http.StatusCreated, status)
	require.Positive(t, product.ID)

	// when
	created, status := s.createSale([]saleItemPayload{{ProductID: product.ID, Quantity: 5}})

	// then
	require.Equal(t, http.StatusCreated, status)
	require.Positive(t, created.SaleID)
	assert.Equal(t, []service.SaleItemDto{{ProductID: product.ID, Quantity: 5}}, created.ItemsSold)
	s.assertStock(product.ID, 5)

	lines, status := s.getSale(created.SaleID)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, lines, 1)
	assert.Equal(t, created.SaleID, lines[0].SaleID)
	assert.Equal(t, product.ID, lines[0].ProductID)
	assert.Equal(t, int32(5), lines[0].Quantity)

	// an oversized sale is refused and leaves stock alone
	body, status := s.doRequest(http.MethodPost, s.server.URL+saleURL, []saleItemPayload{{ProductID: product.ID, Quantity: 999}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "Such amount is not permitted to sell", decodeMessage(t, body))
	s.assertStock(product.ID, 5)

	// updating down to 2 returns 3 units
	updated, status := s.updateSale(created.SaleID, []saleItemPayload{{ProductID: product.ID, Quantity: 2}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.SaleID, updated.SaleID)
	s.assertStock(product.ID, 8)

	// deleting returns the remaining units
	assert.Equal(t, http.StatusNoContent, s.deleteSale(created.SaleID))
	s.assertStock(product.ID, 10)

	_, status = s.getSale(created.SaleID)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, http.StatusNotFound, s.deleteSale(created.SaleID))
	_, status = s.updateSale(created.SaleID, []saleItemPayload{{ProductID: product.ID, Quantity: 1}})
	assert.Equal(t, http.StatusNotFound, status)
}

func (s *InventoryE2ESuite) TestSaleErrors() {
	t := s.T()
	product, status := s.createProduct(productPayload{Name: "Gadget-1", Quantity: 3})
	require.Equal(t, http.StatusCreated, status)

	testCases := []struct {
		name           string
		payload        any
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "unknown product",
			payload:        []saleItemPayload{{ProductID: product.ID + 100, Quantity: 1}},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Product not found",
		},
		{
			name:           "missing product wins over insufficient stock",
			payload:        []saleItemPayload{{ProductID: product.ID, Quantity: 50}, {ProductID: product.ID + 100, Quantity: 1}},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Product not found",
		},
		{
			name:           "zero quantity",
			payload:        []saleItemPayload{{ProductID: product.ID, Quantity: 0}},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    `"quantity" must be greater than or equal to 1`,
		},
		{
			name:           "empty sale",
			payload:        []saleItemPayload{},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "duplicate product",
			payload:        []saleItemPayload{{ProductID: product.ID, Quantity: 1}, {ProductID: product.ID, Quantity: 1}},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "not an array",
			payload:        map[string]any{"productId": product.ID, "quantity": 1},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			body, status := s.doRequest(http.MethodPost, s.server.URL+saleURL, tc.payload)

			// then
			assert.Equal(t, tc.expectedStatus, status)
			if tc.expectedMsg != "" {
				assert.Equal(t, tc.expectedMsg, decodeMessage(t, body))
			}
			s.assertStock(product.ID, 3)
		})
	}

	sales, status := s.listSales()
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, sales)
}

func (s *InventoryE2ESuite) TestConcurrentSalesNeverOversell() {
	t := s.T()
	product, status := s.createProduct(productPayload{Name: "Limited-1", Quantity: 10})
	require.Equal(t, http.StatusCreated, status)

	var wg sync.WaitGroup
	statuses := make(chan int, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, status := s.doRequest(http.MethodPost, s.server.URL+saleURL, []saleItemPayload{{ProductID: product.ID, Quantity: 1}})
			statuses <- status
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for st := range statuses {
		counts[st]++
	}
	assert.Equal(t, 10, counts[http.StatusCreated])
	assert.Equal(t, 10, counts[http.StatusUnprocessableEntity])
	s.assertStock(product.ID, 0)
}

func (s *InventoryE2ESuite) TestProductLifecycle() {
	t := s.T()

	created, status := s.createProduct(productPayload{Name: "Sprocket", Quantity: 4})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, service.ProductDto{ID: created.ID, Name: "Sprocket", Quantity: 4}, created)

	_, status = s.createProduct(productPayload{Name: "Sprocket", Quantity: 1})
	assert.Equal(t, http.StatusConflict, status)

	body, status := s.doRequest(http.MethodPost, s.server.URL+productURL, productPayload{Name: "abc", Quantity: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, `"name" length must be at least 5 characters long`, decodeMessage(t, body))

	updated, status := s.updateProduct(created.ID, productPayload{Name: "Sprocket-2", Quantity: 9})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Sprocket-2", updated.Name)
	s.assertStock(created.ID, 9)

	products, status := s.listProducts()
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, products, 1)

	// deleting a product cascades to the sales lines that reference it
	sale, status := s.createSale([]saleItemPayload{{ProductID: created.ID, Quantity: 1}})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, http.StatusNoContent, s.deleteProduct(created.ID))
	assert.Equal(t, http.StatusNotFound, s.deleteProduct(created.ID))
	_, status = s.getProduct(created.ID)
	assert.Equal(t, http.StatusNotFound, status)
	_, status = s.getSale(sale.SaleID)
	assert.Equal(t, http.StatusNotFound, status)

	body, status = s.doRequest(http.MethodGet, s.server.URL+productURL+"/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid ID: abc", decodeMessage(t, body))
}

func (s *InventoryE2ESuite) TestHealth() {
	_, status := s.doRequest(http.MethodGet, s.server.URL+"/healthz", nil)
	assert.Equal(s.T(), http.StatusOK, status)
}

// --------------------------------------------------------------------------
// ---------- Payload structures and Helper methods for E2E tests -----------
// --------------------------------------------------------------------------

type productPayload struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

type saleItemPayload struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

func (s *InventoryE2ESuite) assertStock(productID int64, expected int32) {
	s.T().Helper()
	product, status := s.getProduct(productID)
	require.Equal(s.T(), http.StatusOK, status)
	assert.Equal(s.T(), expected, product.Quantity, "stock of product %d", productID)
}

func (s *InventoryE2ESuite) getProduct(id int64) (service.ProductDto, int) {
	var product service.ProductDto
	status := s.doAndDecode(http.MethodGet, fmt.Sprintf("%s%s/%d", s.server.URL, productURL, id), nil, &product)
	return product, status
}

func (s *InventoryE2ESuite) listProducts() ([]service.ProductDto, int) {
	var products []service.ProductDto
	status := s.doAndDecode(http.MethodGet, s.server.URL+productURL, nil, &products)
	return products, status
}

func (s *InventoryE2ESuite) createProduct(payload productPayload) (service.ProductDto, int) {
	var product service.ProductDto
	status := s.doAndDecode(http.MethodPost, s.server.URL+productURL, payload, &product)
	return product, status
}

func (s *InventoryE2ESuite) updateProduct(id int64, payload productPayload) (service.ProductDto, int) {
	var product service.ProductDto
	status := s.doAndDecode(http.MethodPut, fmt.Sprintf("%s%s/%d", s.server.URL, productURL, id), payload, &product)
	return product, status
}

func (s *InventoryE2ESuite) deleteProduct(id int64) int {
	_, status := s.doRequest(http.MethodDelete, fmt.Sprintf("%s%s/%d", s.server.URL, productURL, id), nil)
	return status
}

func (s *InventoryE2ESuite) listSales() ([]service.SaleLineDto, int) {
	var lines []service.SaleLineDto
	status := s.doAndDecode(http.MethodGet, s.server.URL+saleURL, nil, &lines)
	return lines, status
}

func (s *InventoryE2ESuite) getSale(id int64) ([]service.SaleLineDto, int) {
	var lines []service.SaleLineDto
	status := s.doAndDecode(http.MethodGet, fmt.Sprintf("%s%s/%d", s.server.URL, saleURL, id), nil, &lines)
	return lines, status
}

func (s *InventoryE2ESuite) createSale(items []saleItemPayload) (service.SaleCreatedDto, int) {
	var created service.SaleCreatedDto
	status := s.doAndDecode(http.MethodPost, s.server.URL+saleURL, items, &created)
	return created, status
}

func (s *InventoryE2ESuite) updateSale(id int64, items []saleItemPayload) (service.SaleUpdatedDto, int) {
	var updated service.SaleUpdatedDto
	status := s.doAndDecode(http.MethodPut, fmt.Sprintf("%s%s/%d", s.server.URL, saleURL, id), items, &updated)
	return updated, status
}

func (s *InventoryE2ESuite) deleteSale(id int64) int {
	_, status := s.doRequest(http.MethodDelete, fmt.Sprintf("%s%s/%d", s.server.URL, saleURL, id), nil)
	return status
}

// doAndDecode decodes the body into out on 200 and 201 responses.
func (s *InventoryE2ESuite) doAndDecode(method, url string, payload, out any) int {
	s.T().Helper()
	body, status := s.doRequest(method, url, payload)
	if status == http.StatusOK || status == http.StatusCreated {
		require.NoError(s.T(), json.Unmarshal(body, out), "Failed to decode response: %s", body)
	}
	return status
}

// doRequest is safe to call from several goroutines.
func (s *InventoryE2ESuite) doRequest(method, url string, payload any) ([]byte, int) {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			s.T().Errorf("marshal payload: %v", err)
			return nil, 0
		}
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, url, body)
	if err != nil {
		s.T().Errorf("create request: %v", err)
		return nil, 0
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.T().Errorf("HTTP request failed: %v", err)
		return nil, 0
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		s.T().Errorf("read response body: %v", err)
		return nil, 0
	}
	return bodyBytes, resp.StatusCode
}

func decodeMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &resp), "body: %s", body)
	return resp.Message
}

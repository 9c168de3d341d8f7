package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/realtime"
	"github.com/vinin2308/foodflow-cardapio/router"
	"github.com/vinin2308/foodflow-cardapio/services"
	"github.com/vinin2308/foodflow-cardapio/store"
	"github.com/vinin2308/foodflow-cardapio/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.InitLogger()
	os.Exit(m.Run())
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tabPayload struct {
	ID     uint    `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`
	Items  []struct {
		ID           uint    `json:"id"`
		MenuItemName string  `json:"menuItemName"`
		Quantity     int     `json:"quantity"`
		UnitPrice    float64 `json:"unitPrice"`
	} `json:"items"`
	CustomerName string `json:"customerName"`
}

type familyPayload struct {
	AccessCode string       `json:"accessCode"`
	TotalTabs  int          `json:"totalTabs"`
	Principal  tabPayload   `json:"principal"`
	Children   []tabPayload `json:"children"`
}

// TestComandaEndToEnd walks the main flow:
// 1. customer starts the comanda and gets the access code
// 2. a friend joins with the code and opens a child tab
// 3. items land on both tabs, everyone sees the same family
// 4. kitchen and waiter drive the order to paid
// 5. the closed comanda rejects further item mutations
func TestComandaEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)

	// 1. start the comanda
	code := startComandaTest(t, r)

	// 2. join and open a child tab
	family := getFamilyTest(t, r, code)
	childID := createChildTest(t, r, family.Principal.ID)

	// 3. order food on both tabs
	addItemTest(t, r, family.Principal.ID, 1, 2)
	addItemTest(t, r, childID, 2, 1)

	family = getFamilyTest(t, r, code)
	assert.Equal(t, 2, family.TotalTabs)
	require.Len(t, family.Principal.Items, 1)
	require.Len(t, family.Children, 1)
	assert.InDelta(t, 2*42.5, family.Principal.Total, 0.001)

	// 4. kitchen prepares, waiter delivers and settles
	kitchenToken := loginTest(t, r, "kitchen@foodflow.test")
	waiterToken := loginTest(t, r, "waiter@foodflow.test")

	transitionTest(t, r, kitchenToken, family.Principal.ID, "start-preparation")
	transitionTest(t, r, kitchenToken, family.Principal.ID, "finalize")
	transitionTest(t, r, waiterToken, family.Principal.ID, "deliver")
	payTest(t, r, waiterToken, family.Principal.ID)

	// 5. paid is terminal
	resp := doRequest(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/tabs/%d/items", family.Principal.ID),
		map[string]interface{}{"menuItemId": 1, "quantity": 1}, "")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

// TestComandaWebsocketStream checks that a subscriber receives the snapshot
// on connect and again after a REST mutation on the same access code.
func TestComandaWebsocketStream(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)

	code := startComandaTest(t, r)
	family := getFamilyTest(t, r, code)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/comanda/" + code
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// initial snapshot arrives right after the upgrade
	event := readEvent(t, conn)
	assert.Equal(t, realtime.EventTabUpdated, event.Type)

	addItemTest(t, r, family.Principal.ID, 1, 3)

	event = readEvent(t, conn)
	assert.Equal(t, realtime.EventTabUpdated, event.Type)

	var snap familyPayload
	require.NoError(t, json.Unmarshal(event.Data, &snap))
	require.Len(t, snap.Principal.Items, 1)
	assert.Equal(t, 3, snap.Principal.Items[0].Quantity)
}

// TestManagerProvisioningFlow covers the staff side: register a manager
// account, log in and build the catalog and floor over the API.
func TestManagerProvisioningFlow(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)

	w := doRequest(t, r, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"name":     "Vini",
		"email":    "vini@foodflow.test",
		"password": "s3cret-pass",
		"role":     models.RoleManager,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	token := loginTest(t, r, "vini@foodflow.test")

	w = doRequest(t, r, http.MethodPost, "/api/v1/categories",
		map[string]interface{}{"name": "Drinks", "icon": "🍹"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var category models.Category
	decodeData(t, w, &category)

	w = doRequest(t, r, http.MethodPost, "/api/v1/dishes", map[string]interface{}{
		"category_id": category.ID,
		"name":        "Caipirinha",
		"price":       18.0,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doRequest(t, r, http.MethodPost, "/api/v1/tables",
		map[string]interface{}{"number": 30, "capacity": 2}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// a waiter token cannot touch the catalog
	waiterToken := loginTest(t, r, "waiter@foodflow.test")
	w = doRequest(t, r, http.MethodPost, "/api/v1/categories",
		map[string]interface{}{"name": "Desserts"}, waiterToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the new table is visible on the public floor map
	w = doRequest(t, r, http.MethodGet, "/api/v1/tables?status=available", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var tables []models.Table
	decodeData(t, w, &tables)
	numbers := make([]int, 0, len(tables))
	for _, table := range tables {
		numbers = append(numbers, table.Number)
	}
	assert.Contains(t, numbers, 30)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Manager{},
		&models.Category{},
		&models.Dish{},
		&models.Table{},
		&models.Tab{},
		&models.TabItem{},
		&models.TabMember{},
		&models.Payment{},
	)
	require.NoError(t, err)

	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	db.Create(&models.Manager{Name: "Kitchen", Email: "kitchen@foodflow.test", Password: string(hashed), Role: models.RoleKitchen})
	db.Create(&models.Manager{Name: "Waiter", Email: "waiter@foodflow.test", Password: string(hashed), Role: models.RoleWaiter})

	db.Create(&models.Table{Number: 12, Capacity: 4, Status: models.TableAvailable, Active: true})
	db.Create(&models.Category{Name: "Mains", Active: true})
	db.Create(&models.Dish{CategoryID: 1, Name: "Feijoada", Price: 42.5, Active: true})
	db.Create(&models.Dish{CategoryID: 1, Name: "Moqueca", Price: 55.0, Active: true})

	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	logger := logrus.New()
	hub := realtime.NewHub(logger)
	tabService := services.NewTabService(store.NewTabStore(db), hub, logger)
	return router.SetupRouter(db, tabService, hub)
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Key", "test-device")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func startComandaTest(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doRequest(t, r, http.MethodPost, "/api/v1/comandas",
		map[string]interface{}{"tableNumber": 12, "customerName": "Ana"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		AccessCode string `json:"accessCode"`
	}
	decodeData(t, w, &data)
	require.Len(t, data.AccessCode, 6)
	return data.AccessCode
}

func getFamilyTest(t *testing.T, r *gin.Engine, code string) familyPayload {
	t.Helper()
	w := doRequest(t, r, http.MethodGet, "/api/v1/comandas/"+code, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var family familyPayload
	decodeData(t, w, &family)
	return family
}

func createChildTest(t *testing.T, r *gin.Engine, parentID uint) uint {
	t.Helper()
	w := doRequest(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/tabs/%d/children", parentID),
		map[string]interface{}{"customerName": "Bia"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var family familyPayload
	decodeData(t, w, &family)
	require.Len(t, family.Children, 1)
	return family.Children[0].ID
}

func addItemTest(t *testing.T, r *gin.Engine, tabID, menuItemID uint, quantity int) {
	t.Helper()
	w := doRequest(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/tabs/%d/items", tabID),
		map[string]interface{}{"menuItemId": menuItemID, "quantity": quantity}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func loginTest(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	w := doRequest(t, r, http.MethodPost, "/api/v1/auth/login",
		map[string]interface{}{"email": email, "password": "s3cret-pass"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

func transitionTest(t *testing.T, r *gin.Engine, token string, tabID uint, action string) {
	t.Helper()
	w := doRequest(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/tabs/%d/%s", tabID, action), nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func payTest(t *testing.T, r *gin.Engine, token string, tabID uint) {
	t.Helper()
	w := doRequest(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/tabs/%d/pay", tabID),
		map[string]interface{}{"method": models.PaymentPix}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var family familyPayload
	decodeData(t, w, &family)
	assert.Equal(t, models.StatusPaid, family.Principal.Status)
}

type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var event wsEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

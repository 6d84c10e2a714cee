package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"farm-market-backend/internal/auth"
	"farm-market-backend/internal/config"
	"farm-market-backend/internal/dbtest"
	"farm-market-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type harness struct {
	t     *testing.T
	app   *fiber.App
	db    *gorm.DB
	admin string
	user  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	cfg := &config.Config{CORSOrigins: "http://localhost:3000"}
	issuer := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	h := &harness{t: t, app: New(cfg, db, zaptest.NewLogger(t), issuer), db: db}

	hash, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Username: "admin", Email: "admin@example.com", PasswordHash: string(hash), Role: models.RoleAdmin,
	}).Error)

	_, body := h.do("POST", "/api/auth/login", "", fiber.Map{"username": "admin", "password": "adminpass"})
	h.admin = body["token"].(string)

	status, body := h.do("POST", "/api/auth/register", "", fiber.Map{
		"username": "grower", "email": "grower@example.com", "password": "growpass",
	})
	require.Equal(t, fiber.StatusCreated, status)
	h.user = body["token"].(string)
	return h
}

func (h *harness) do(method, path, token string, body any) (int, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)

	var out map[string]any
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *harness) createFarm(name, country string, rating float64) uint {
	h.t.Helper()
	status, body := h.do("POST", "/api/farms", h.user, fiber.Map{
		"name": name, "country": country, "location": "Somewhere 1", "rating": rating,
	})
	require.Equal(h.t, fiber.StatusCreated, status, body)
	return uint(body["farm_id"].(float64))
}

func (h *harness) createCrop(name, category, season, origin string) uint {
	h.t.Helper()
	status, body := h.do("POST", "/api/crops", h.user, fiber.Map{
		"name": name, "category": category, "season": season, "origin": origin,
	})
	require.Equal(h.t, fiber.StatusCreated, status, body)
	return uint(body["crop_id"].(float64))
}

func (h *harness) list(farmID, cropID uint) uint {
	h.t.Helper()
	status, body := h.do("POST", fmt.Sprintf("/api/farms/%d/crops", farmID), h.user, fiber.Map{
		"crop_id": cropID, "quantity": 10, "price": 2.5,
	})
	require.Equal(h.t, fiber.StatusCreated, status, body)
	return uint(body["listing"].(map[string]any)["listing_id"].(float64))
}

func names(t *testing.T, body map[string]any, key string) []string {
	t.Helper()
	var out []string
	for _, item := range body[key].([]any) {
		out = append(out, item.(map[string]any)["name"].(string))
	}
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, body := h.do("GET", "/api/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
}

func TestMutationsRequireToken(t *testing.T) {
	h := newHarness(t)

	status, body := h.do("POST", "/api/farms", "", fiber.Map{"name": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = h.do("DELETE", "/api/crops/1", "not-a-token", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = h.do("GET", "/api/farms", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestFarmValidation(t *testing.T) {
	h := newHarness(t)

	status, body := h.do("POST", "/api/farms", h.user, fiber.Map{
		"name": "A", "country": "Italy", "location": "Rome", "rating": 9,
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Len(t, body["details"], 3)

	id := h.createFarm("Sunny Acres", "Italy", 4)
	status, body = h.do("PUT", fmt.Sprintf("/api/farms/%d", id), h.user, fiber.Map{"created_at": "2020-01-01"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "No valid fields to update", body["error"])

	status, _ = h.do("PUT", "/api/farms/999", h.user, fiber.Map{"rating": 3})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestFarmLifecycle(t *testing.T) {
	h := newHarness(t)

	sunny := h.createFarm("Sunny Acres", "Italy", 4.25)
	hill := h.createFarm("Hill Top", "Spain", 4.8)
	h.createFarm("Bare Field", "Italy", 3)

	apples := h.createCrop("Apples", "fruits", "Fall", "Trentino")
	kale := h.createCrop("Kale", "vegetables", "Year-round", "Tuscany")
	h.list(sunny, apples)
	h.list(sunny, kale)
	h.list(hill, apples)

	status, body := h.do("GET", "/api/farms", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])
	assert.Equal(t, []string{"Hill Top", "Sunny Acres", "Bare Field"}, names(t, body, "farms"))
	first := body["farms"].([]any)[1].(map[string]any)
	assert.ElementsMatch(t, []any{"Apples", "Kale"}, first["crops"])
	assert.ElementsMatch(t, []any{"fruits", "vegetables"}, first["crop_categories"])
	assert.Equal(t, "🌾", first["icon"])

	_, body = h.do("GET", "/api/farms?crop_type=vegetables", "", nil)
	assert.Equal(t, []string{"Sunny Acres"}, names(t, body, "farms"))

	_, body = h.do("GET", "/api/farms?season=Spring", "", nil)
	assert.Equal(t, []string{"Sunny Acres"}, names(t, body, "farms"), "Year-round matches any season")

	_, body = h.do("GET", "/api/farms?country=Italy&search=bare", "", nil)
	assert.Equal(t, []string{"Bare Field"}, names(t, body, "farms"))

	status, body = h.do("GET", fmt.Sprintf("/api/farms/%d", sunny), "", nil)
	require.Equal(t, fiber.StatusOK, status)
	farm := body["farm"].(map[string]any)
	require.Len(t, farm["crops"], 2)
	listing := farm["crops"].([]any)[0].(map[string]any)
	assert.Equal(t, "Apples", listing["name"])
	assert.Equal(t, true, listing["available"])
	assert.NotNil(t, listing["listing_id"])

	status, body = h.do("GET", "/api/farms/stats/overview", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["total_farms"])
	assert.EqualValues(t, 4, stats["average_rating"])
	assert.EqualValues(t, 2, stats["countries_covered"])

	status, body = h.do("PUT", fmt.Sprintf("/api/farms/%d", sunny), h.user, fiber.Map{"rating": 5, "icon": ""})
	require.Equal(t, fiber.StatusOK, status)
	updated := body["farm"].(map[string]any)
	assert.EqualValues(t, 5, updated["rating"])
	assert.Equal(t, "🌾", updated["icon"])
	assert.Equal(t, "Sunny Acres", updated["name"])

	status, body = h.do("DELETE", fmt.Sprintf("/api/crops/%d", apples), h.user, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.EqualValues(t, 2, body["linked_farms"])

	status, body = h.do("DELETE", fmt.Sprintf("/api/farms/%d", sunny), h.user, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["rows_affected"])
	assert.EqualValues(t, 1, dbtest.Count(t, h.db, &models.FarmCrop{}), "listings cascade with the farm")

	status, _ = h.do("DELETE", fmt.Sprintf("/api/farms/%d", sunny), h.user, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = h.do("DELETE", fmt.Sprintf("/api/crops/%d", kale), h.user, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestListings(t *testing.T) {
	h := newHarness(t)
	farm := h.createFarm("Sunny Acres", "Italy", 4)
	crop := h.createCrop("Apples", "fruits", "Fall", "Trentino")
	listing := h.list(farm, crop)

	status, _ := h.do("POST", fmt.Sprintf("/api/farms/%d/crops", farm), h.user, fiber.Map{"crop_id": 999, "price": 1})
	assert.Equal(t, fiber.StatusNotFound, status)

	path := fmt.Sprintf("/api/farms/%d/crops/%d", farm, listing)
	status, body := h.do("PUT", path, h.user, fiber.Map{"available": false, "quantity": 0})
	require.Equal(t, fiber.StatusOK, status)
	l := body["listing"].(map[string]any)
	assert.Equal(t, false, l["available"])
	assert.EqualValues(t, 0, l["quantity"])
	assert.EqualValues(t, 2.5, l["price"])

	status, _ = h.do("PUT", fmt.Sprintf("/api/farms/%d/crops/%d", farm+1, listing), h.user, fiber.Map{"price": 3})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = h.do("DELETE", path, h.user, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, dbtest.Count(t, h.db, &models.FarmCrop{}))
}

func TestCropQueries(t *testing.T) {
	h := newHarness(t)
	h.createCrop("Tomatoes", "vegetables", "Summer", "Sicily")
	h.createCrop("Apples", "fruits", "Fall", "Trentino")
	h.createCrop("Potatoes", "vegetables", "Year-round", "Idaho")

	_, body := h.do("GET", "/api/crops", "", nil)
	assert.Equal(t, []string{"Apples", "Potatoes", "Tomatoes"}, names(t, body, "crops"))

	_, body = h.do("GET", "/api/crops?category=vegetables&season=Summer", "", nil)
	assert.Equal(t, []string{"Potatoes", "Tomatoes"}, names(t, body, "crops"))

	_, body = h.do("GET", "/api/crops?origin=tren", "", nil)
	assert.Equal(t, []string{"Apples"}, names(t, body, "crops"))

	_, body = h.do("GET", "/api/crops/category/fruits", "", nil)
	assert.Equal(t, []string{"Apples"}, names(t, body, "crops"))

	status, _ := h.do("GET", "/api/crops/category/nuts", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	_, body = h.do("GET", "/api/crops/season/Fall", "", nil)
	assert.Equal(t, []string{"Apples", "Potatoes"}, names(t, body, "crops"))

	_, body = h.do("GET", "/api/crops/stats/overview", "", nil)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["total_crops"])
	assert.EqualValues(t, 2, stats["categories"])
	assert.EqualValues(t, 3, stats["seasons"])
	assert.EqualValues(t, 3, stats["origins"])

	status, body = h.do("POST", "/api/crops", h.user, fiber.Map{
		"name": "Figs", "category": "nuts", "season": "Summer", "origin": "Smyrna",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["error"])

	status, _ = h.do("GET", "/api/crops/abc", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAuditLogs(t *testing.T) {
	h := newHarness(t)
	id := h.createFarm("Sunny Acres", "Italy", 4)
	h.do("PUT", fmt.Sprintf("/api/farms/%d", id), h.user, fiber.Map{"rating": 5})

	status, _ := h.do("GET", "/api/audit-logs", h.user, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := h.do("GET", "/api/audit-logs?entity_type=farm", h.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
	latest := body["logs"].([]any)[0].(map[string]any)
	assert.Equal(t, "update", latest["action"])
	assert.Equal(t, "grower", latest["username"])
}

func (h *harness) upload(token, filename, content string, fields map[string]string) (int, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(h.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(h.t, err)
	for k, v := range fields {
		require.NoError(h.t, w.WriteField(k, v))
	}
	require.NoError(h.t, w.Close())

	req := httptest.NewRequest("POST", "/api/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)

	var out map[string]any
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestImportEndpoint(t *testing.T) {
	h := newHarness(t)
	batch := `[{"name":"A","country":"c","location":"l","crops":[{"name":"Apples","category":"fruits","season":"Fall","origin":"X","quantity":5,"price":1.0}]},{"name":"B","country":"c"}]`

	status, _ := h.upload(h.user, "farms.json", batch, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := h.upload(h.admin, "farms.csv", batch, nil)
	assert.Equal(t, fiber.StatusBadRequest, status, body)

	status, body = h.upload(h.admin, "farms.json", `{"name":"A"}`, nil)
	assert.Equal(t, fiber.StatusBadRequest, status, body)

	status, body = h.upload(h.admin, "farms.json", batch, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	result := body["result"].(map[string]any)
	assert.EqualValues(t, 1, result["farms_imported"])
	assert.EqualValues(t, 1, result["farms_skipped"])

	status, _ = h.upload(h.admin, "farms.json", batch, map[string]string{"reset": "true"})
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, dbtest.Count(t, h.db, &models.Farm{}))
	assert.EqualValues(t, 1, dbtest.Count(t, h.db, &models.Crop{}))
}

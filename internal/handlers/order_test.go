package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pharmadrop/internal/config"
	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/models"
	"github.com/example/pharmadrop/internal/repository"
	"github.com/example/pharmadrop/internal/services"
	"github.com/example/pharmadrop/internal/utils"
)

const testSecret = "handler-test-secret"

type api struct {
	t   *testing.T
	app *fiber.App
	svc *services.OrderService

	customer, other, owner, courier, admin models.User
	pharmacy                               models.Pharmacy
	medicine                               models.Medicine
}

func newAPI(t *testing.T) *api {
	t.Helper()

	store := repository.NewMemoryStore()
	a := &api{
		t:        t,
		customer: models.User{Name: "Cora", Email: "cora@example.com", Phone: "+15550000001", Role: models.RoleCustomer},
		other:    models.User{Name: "Carl", Email: "carl@example.com", Role: models.RoleCustomer},
		owner:    models.User{Name: "Omar", Email: "omar@example.com", Role: models.RolePharmacyOwner},
		courier:  models.User{Name: "Dina", Email: "dina@example.com", Phone: "+15550000009", Role: models.RoleDeliveryPerson},
		admin:    models.User{Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin},
	}
	for _, u := range []*models.User{&a.customer, &a.other, &a.owner, &a.courier, &a.admin} {
		store.AddUser(u)
	}
	a.pharmacy = models.Pharmacy{Name: "Green Cross", OwnerID: a.owner.ID, Image: "green.png"}
	store.AddPharmacy(&a.pharmacy)
	a.medicine = models.Medicine{Name: "Ibuprofen 200mg", Price: 10, Stock: 10, Image: "ibu.png", PharmacyID: a.pharmacy.ID}
	store.AddMedicine(&a.medicine)
	store.AddCoupon(&models.Coupon{Code: "SAVE5", MinAmount: 20, DiscountAmount: 5, UsageLimit: 1, IsActive: true})

	a.svc = services.NewOrderService(store, nil, nil, 0)
	cfg := &config.Config{JWTSecret: testSecret, TokenExpires: time.Hour}

	a.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	NewOrderHandler(a.svc).RegisterOrderRoutes(a.app.Group("/api/orders", middleware.AuthMiddleware(cfg, store)))
	return a
}

func (a *api) token(u models.User) string {
	a.t.Helper()
	token, err := utils.GenerateToken(testSecret, u.ID, u.Role, time.Hour)
	require.NoError(a.t, err)
	return token
}

// do sends a JSON request as u (anonymous when u is nil) and decodes the
// response body into out when out is non-nil.
func (a *api) do(method, path string, u *models.User, body any, out any) *http.Response {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*u))
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (a *api) placeOrder(quantity int, coupon string) map[string]any {
	a.t.Helper()
	var order map[string]any
	resp := a.do(http.MethodPost, "/api/orders", &a.customer, fiber.Map{
		"pharmacyId":      a.pharmacy.ID,
		"items":           []fiber.Map{{"medicineId": a.medicine.ID, "quantity": quantity}},
		"deliveryAddress": "12 Elm St",
		"couponCode":      coupon,
	}, &order)
	require.Equal(a.t, fiber.StatusCreated, resp.StatusCode, order)
	return order
}

func TestOrders_RequireToken(t *testing.T) {
	a := newAPI(t)

	var body map[string]string
	resp := a.do(http.MethodGet, "/api/orders/myorders", nil, nil, &body)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authorized, no token", body["message"])

	req := httptest.NewRequest(http.MethodGet, "/api/orders/myorders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOrders_CreateWithCoupon(t *testing.T) {
	a := newAPI(t)

	order := a.placeOrder(2, " save5 ")
	assert.Equal(t, "packing", order["status"])
	assert.Equal(t, 20.0, order["subtotal"])
	assert.Equal(t, 5.0, order["discount"])
	assert.Equal(t, 15.0, order["totalAmount"])
	assert.Equal(t, "SAVE5", order["couponCode"])
	assert.Equal(t, a.customer.ID.String(), order["customerId"])
	assert.NotEmpty(t, order["id"])

	// The single use is gone.
	var body map[string]string
	resp := a.do(http.MethodPost, "/api/orders", &a.customer, fiber.Map{
		"pharmacyId":      a.pharmacy.ID,
		"items":           []fiber.Map{{"medicineId": a.medicine.ID, "quantity": 2}},
		"deliveryAddress": "12 Elm St",
		"couponCode":      "SAVE5",
	}, &body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Coupon usage limit reached", body["message"])
}

func TestOrders_CreateRejections(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name    string
		as      *models.User
		body    fiber.Map
		status  int
		message string
	}{
		{
			name:    "courier cannot order",
			as:      &a.courier,
			body:    fiber.Map{"pharmacyId": a.pharmacy.ID, "items": []fiber.Map{{"medicineId": a.medicine.ID, "quantity": 1}}, "deliveryAddress": "x"},
			status:  fiber.StatusUnauthorized,
			message: "User role delivery_person is not authorized to access this route",
		},
		{
			name:    "insufficient stock",
			as:      &a.customer,
			body:    fiber.Map{"pharmacyId": a.pharmacy.ID, "items": []fiber.Map{{"medicineId": a.medicine.ID, "quantity": 11}}, "deliveryAddress": "x"},
			status:  fiber.StatusBadRequest,
			message: "Not enough stock for Ibuprofen 200mg",
		},
		{
			name:    "unknown pharmacy",
			as:      &a.customer,
			body:    fiber.Map{"pharmacyId": uuid.New(), "items": []fiber.Map{{"medicineId": a.medicine.ID, "quantity": 1}}, "deliveryAddress": "x"},
			status:  fiber.StatusNotFound,
			message: "Pharmacy not found",
		},
		{
			name:    "empty items",
			as:      &a.customer,
			body:    fiber.Map{"pharmacyId": a.pharmacy.ID, "items": []fiber.Map{}, "deliveryAddress": "x"},
			status:  fiber.StatusBadRequest,
			message: "No order items",
		},
		{
			name:    "below coupon minimum",
			as:      &a.customer,
			body:    fiber.Map{"pharmacyId": a.pharmacy.ID, "items": []fiber.Map{{"medicineId": a.medicine.ID, "quantity": 1}}, "deliveryAddress": "x", "couponCode": "SAVE5"},
			status:  fiber.StatusBadRequest,
			message: "Minimum order amount of $20.00 required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			resp := a.do(http.MethodPost, "/api/orders", tt.as, tt.body, &body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, body["message"])
		})
	}

	// Nothing was reserved by the rejected attempts.
	a.placeOrder(10, "")
}

func TestOrders_Lifecycle(t *testing.T) {
	a := newAPI(t)
	order := a.placeOrder(1, "")
	base := "/api/orders/" + order["id"].(string)

	var body map[string]any
	resp := a.do(http.MethodPost, "/api/orders/instructions/"+order["id"].(string), &a.owner, fiber.Map{
		"instructions": []fiber.Map{{"text": "Keep cold", "priority": "HIGH"}, {"text": "Fragile"}},
	}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	instructions := body["instructions"].([]any)
	require.Len(t, instructions, 2)
	assert.Equal(t, "high", instructions[0].(map[string]any)["priority"])
	assert.Equal(t, "info", instructions[1].(map[string]any)["icon"])

	resp = a.do(http.MethodPut, base+"/assign-delivery", &a.owner, fiber.Map{"deliveryPersonId": a.courier.ID}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, a.courier.ID.String(), body["deliveryPersonId"])

	resp = a.do(http.MethodPut, base+"/status", &a.courier, fiber.Map{"status": "on_the_way"}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "on_the_way", body["status"])

	var msg map[string]string
	resp = a.do(http.MethodPut, base+"/status", &a.admin, fiber.Map{"status": "packing"}, &msg)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot move order from on_the_way to packing", msg["message"])

	resp = a.do(http.MethodPost, "/api/orders/instructions/"+order["id"].(string), &a.owner, fiber.Map{
		"instructions": []fiber.Map{{"text": "Too late"}},
	}, &msg)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = a.do(http.MethodPut, base+"/status", &a.customer, fiber.Map{"status": "delivered"}, &msg)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = a.do(http.MethodPut, base+"/status", &a.courier, fiber.Map{"status": "delivered"}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "delivered", body["status"])
	history := body["statusHistory"].([]any)
	assert.Len(t, history, 3)
}

func TestOrders_AssignRejectsNonCourier(t *testing.T) {
	a := newAPI(t)
	order := a.placeOrder(1, "")

	var msg map[string]string
	resp := a.do(http.MethodPut, "/api/orders/"+order["id"].(string)+"/assign-delivery", &a.owner,
		fiber.Map{"deliveryPersonId": a.other.ID}, &msg)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid delivery person ID or user is not a delivery person", msg["message"])
}

func TestOrders_ListingsJoinDisplayFields(t *testing.T) {
	a := newAPI(t)
	order := a.placeOrder(1, "")
	a.placeOrder(2, "")

	var mine []map[string]any
	resp := a.do(http.MethodGet, "/api/orders/myorders?limit=1", &a.customer, nil, &mine)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-Total-Count"))
	require.Len(t, mine, 1)
	assert.Equal(t, "Green Cross", mine[0]["pharmacy"].(map[string]any)["name"])
	assert.Equal(t, "cora@example.com", mine[0]["customer"].(map[string]any)["email"])
	assert.Equal(t, "ibu.png", mine[0]["items"].([]any)[0].(map[string]any)["image"])

	var all []map[string]any
	resp = a.do(http.MethodGet, "/api/orders?status=packing", &a.admin, nil, &all)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, all, 2)

	resp = a.do(http.MethodGet, "/api/orders?status=lost", &a.admin, nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/orders", &a.owner, nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var byPharmacy []map[string]any
	resp = a.do(http.MethodGet, "/api/orders/pharmacy/"+a.pharmacy.ID.String(), &a.owner, nil, &byPharmacy)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, byPharmacy, 2)

	a.do(http.MethodPut, "/api/orders/"+order["id"].(string)+"/assign-delivery", &a.owner, fiber.Map{"deliveryPersonId": a.courier.ID}, nil)
	var deliveries []map[string]any
	resp = a.do(http.MethodGet, "/api/orders/mydeliveries", &a.courier, nil, &deliveries)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "Dina", deliveries[0]["deliveryPerson"].(map[string]any)["name"])
}

func TestOrders_GetOrderParties(t *testing.T) {
	a := newAPI(t)
	order := a.placeOrder(1, "")
	path := "/api/orders/" + order["id"].(string)

	for _, u := range []*models.User{&a.customer, &a.owner, &a.admin} {
		resp := a.do(http.MethodGet, path, u, nil, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, u.Name)
	}

	var msg map[string]string
	resp := a.do(http.MethodGet, path, &a.other, nil, &msg)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/orders/"+uuid.NewString(), &a.customer, nil, &msg)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Order not found", msg["message"])

	resp = a.do(http.MethodGet, "/api/orders/not-a-uuid", &a.customer, nil, &msg)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestOrders_StatusIgnoresBlankCourier(t *testing.T) {
	a := newAPI(t)
	order := a.placeOrder(1, "")
	base := "/api/orders/" + order["id"].(string)

	var body map[string]any
	resp := a.do(http.MethodPut, base+"/status", &a.owner, fiber.Map{"status": "on_the_way", "deliveryPersonId": ""}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "on_the_way", body["status"])
	assert.Nil(t, body["deliveryPersonId"])

	resp = a.do(http.MethodPut, base+"/status", &a.owner, fiber.Map{"deliveryPersonId": nil}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "on_the_way", body["status"])

	var msg map[string]string
	resp = a.do(http.MethodPut, base+"/status", &a.owner, fiber.Map{"deliveryPersonId": "courier-7"}, &msg)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid delivery person ID or user is not a delivery person", msg["message"])

	resp = a.do(http.MethodPut, base+"/status", &a.owner, fiber.Map{"deliveryPersonId": a.courier.ID.String()}, &body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, a.courier.ID.String(), body["deliveryPersonId"])
}

func TestOrders_MyOrdersIsForCustomers(t *testing.T) {
	a := newAPI(t)
	a.placeOrder(1, "")

	for _, u := range []*models.User{&a.owner, &a.courier, &a.admin} {
		var msg map[string]string
		resp := a.do(http.MethodGet, "/api/orders/myorders", u, nil, &msg)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, u.Role)
		assert.Equal(t, "User role "+u.Role+" is not authorized to access this route", msg["message"])
	}
}

package handler

import (
	"errors"
	"net/http"

	"smm-orders/internal/core/logger"
	"smm-orders/internal/core/requestdef"
	"smm-orders/internal/features/orders/adapters/smm"
	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests related to orders.
type OrderHandler struct {
	// service is the OrderService instance.
	service ports.OrderService

	// starts serializes Start calls per order id.
	starts *keyedMutex
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s ports.OrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
		starts:  newKeyedMutex(),
	}
}

// Register mounts the order routes on app.
func (h *OrderHandler) Register(app fiber.Router) {
	app.Get("/services", h.ListServices)
	app.Post("/orders", h.CreateOrder)
	app.Post("/orders/sync", h.SyncOrders)
	app.Get("/orders/:id", h.GetOrder)
	app.Post("/orders/:id/start", h.StartOrder)
	app.Post("/orders/:id/sync", h.SyncOrder)
	app.Post("/orders/:id/cancel", h.CancelOrder)
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	ServiceID int    `json:"service_id"`
	Link      string `json:"link"`
	Quantity  int    `json:"quantity"`
}

// SyncOrdersRequest is the body of POST /orders/sync.
type SyncOrdersRequest struct {
	IDs []uint `json:"ids"`
}

// StartResponse reports the outcome of a start.
type StartResponse struct {
	Started bool          `json:"started"`
	Order   *domain.Order `json:"order"`
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// ListServices handles GET /services.
// @Summary List services
// @Description Returns the provider catalog with quantity bounds, optionally filtered by type.
// @Tags Orders
// @Produce json
// @Param type query string false "Service type (likes, views, comments, followers)"
// @Success 200 {array} domain.Service
// @Failure 400 {object} ErrorResponse
// @Router /services [get]
func (h *OrderHandler) ListServices(c *fiber.Ctx) error {
	raw := c.Query("type")
	if raw == "" {
		return c.Status(http.StatusOK).JSON(domain.Services())
	}

	serviceType := domain.ServiceType(raw)
	if !serviceType.Valid() {
		return respondError(c, http.StatusBadRequest, "Unknown service type")
	}
	return c.Status(http.StatusOK).JSON(domain.ServicesOfType(serviceType))
}

// CreateOrder handles POST /orders.
// @Summary Create an order
// @Description Stores a pending order after checking the quantity against the catalog.
// @Tags Orders
// @Accept json
// @Produce json
// @Param order body CreateOrderRequest true "Order details"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}

	order, err := h.service.CreateOrder(c.Context(), req.ServiceID, req.Link, req.Quantity)
	if err != nil {
		return h.fail(c, "Failed to create order", err)
	}

	return c.Status(http.StatusCreated).JSON(order)
}

// GetOrder handles GET /orders/:id.
// @Summary Get Order by ID
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, ok, err := h.loadOrder(c)
	if !ok {
		return err
	}
	return c.Status(http.StatusOK).JSON(order)
}

// StartOrder handles POST /orders/:id/start.
// @Summary Start an order
// @Description Moves a pending order to in progress and submits it to the provider. A failed submission cancels the order.
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Param interval query int false "Drip-feed interval in minutes"
// @Success 200 {object} StartResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} StartResponse
// @Router /orders/{id}/start [post]
func (h *OrderHandler) StartOrder(c *fiber.Ctx) error {
	interval, err := domain.ParseInterval(c.Query("interval"))
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Interval must be an integer number of minutes")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, http.StatusBadRequest, "Order ID must be a positive integer")
	}

	unlock := h.starts.Lock(uint(id))
	defer unlock()

	order, ok, err := h.loadOrder(c)
	if !ok {
		return err
	}

	if order.Status != domain.StatusPending || order.Submitted() {
		return respondError(c, http.StatusConflict, "Order has already been started")
	}

	started := h.service.Start(c.Context(), order, interval)
	status := http.StatusOK
	if !started {
		status = http.StatusBadGateway
	}

	return c.Status(status).JSON(StartResponse{Started: started, Order: order})
}

// SyncOrder handles POST /orders/:id/sync.
// @Summary Reconcile one order
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /orders/{id}/sync [post]
func (h *OrderHandler) SyncOrder(c *fiber.Ctx) error {
	order, ok, err := h.loadOrder(c)
	if !ok {
		return err
	}

	if err := h.service.SyncStatuses(c.Context(), domain.Single(order)); err != nil {
		return h.fail(c, "Failed to sync order", err)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// CancelOrder handles POST /orders/:id/cancel.
// @Summary Cancel one order
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	order, ok, err := h.loadOrder(c)
	if !ok {
		return err
	}

	if err := h.service.Cancel(c.Context(), domain.Single(order)); err != nil {
		return h.fail(c, "Failed to cancel order", err)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// SyncOrders handles POST /orders/sync.
// @Summary Reconcile several orders in one provider call
// @Tags Orders
// @Accept json
// @Produce json
// @Param ids body SyncOrdersRequest true "Order IDs"
// @Success 200 {array} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /orders/sync [post]
func (h *OrderHandler) SyncOrders(c *fiber.Ctx) error {
	var req SyncOrdersRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return respondError(c, http.StatusBadRequest, "A non-empty list of order ids is required")
	}

	orders, err := h.service.GetOrders(c.Context(), req.IDs)
	if err != nil {
		return h.fail(c, "Failed to load orders", err)
	}
	if len(orders) == 0 {
		return respondError(c, http.StatusNotFound, "Order not found")
	}

	if err := h.service.SyncStatuses(c.Context(), domain.Batch(orders...)); err != nil {
		return h.fail(c, "Failed to sync orders", err)
	}

	return c.Status(http.StatusOK).JSON(orders)
}

// loadOrder resolves :id. When ok is false the error response has already
// been written and err is what the handler must return.
func (h *OrderHandler) loadOrder(c *fiber.Ctx) (*domain.Order, bool, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, false, respondError(c, http.StatusBadRequest, "Order ID must be a positive integer")
	}

	order, err := h.service.GetOrder(c.Context(), uint(id))
	if err != nil {
		return nil, false, h.fail(c, "Failed to fetch order", err)
	}
	return order, true, nil
}

// fail logs err and maps it to a status code.
func (h *OrderHandler) fail(c *fiber.Ctx, logMsg string, err error) error {
	logger.Get().Error(logMsg,
		zap.String("path", c.Path()),
		zap.String("ray_id", rayID(c)),
		zap.Error(err),
	)

	var (
		validationErr *requestdef.ValidationError
		httpErr       *requestdef.HTTPError
		protocolErr   *smm.ProtocolError
	)

	switch {
	case errors.Is(err, ports.ErrOrderNotFound):
		return respondError(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, domain.ErrUnknownService), errors.Is(err, domain.ErrQuantityOutOfRange), errors.Is(err, domain.ErrLinkRequired):
		return respondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validationErr):
		return respondError(c, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.Is(err, requestdef.ErrRateLimited):
		return respondError(c, http.StatusTooManyRequests, "Too many identical provider requests, retry later")
	case errors.As(err, &httpErr), errors.As(err, &protocolErr):
		return respondError(c, http.StatusBadGateway, err.Error())
	default:
		return respondError(c, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{
		Message: msg,
		RayID:   rayID(c),
	})
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return "unknown"
}

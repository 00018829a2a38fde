package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	"go.uber.org/zap"
)

const deleteAction = "delete"

// CatalogFactory builds the product catalog of one shop from its offline session.
type CatalogFactory func(shop, accessToken string) service.Catalog

// AdminDeps groups dependencies required by admin handlers.
type AdminDeps struct {
	Logger     *zap.Logger
	QRCodes    service.QRCodeService
	CatalogFor CatalogFactory
}

// AdminHandler implements the merchant-facing QR code endpoints.
type AdminHandler struct {
	logger     *zap.Logger
	qrCodes    service.QRCodeService
	newCatalog CatalogFactory
}

// NewAdminHandler creates an admin handler with the provided dependencies.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		logger:     logger,
		qrCodes:    deps.QRCodes,
		newCatalog: deps.CatalogFor,
	}
}

// Register wires admin routes behind auth onto the provided router.
func (h *AdminHandler) Register(router fiber.Router, auth fiber.Handler) {
	api := router.Group("/api", auth)
	{
		qrcodes := api.Group("/qrcodes")
		{
			qrcodes.Get("/", h.List)
			qrcodes.Get("/new", h.New)
			qrcodes.Get("/:id", h.Get)
			qrcodes.Post("/", h.Submit)
			qrcodes.Post("/:id", h.Submit)
			qrcodes.Delete("/:id", h.Delete)
		}
	}
}

// List handles GET /api/qrcodes
func (h *AdminHandler) List(c *fiber.Ctx) error {
	session, ok := middleware.ShopSession(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	views, err := h.qrCodes.List(c.UserContext(), session.Shop, h.catalogFor(c, session))
	if err != nil {
		return h.writeError(c, err, "failed to list qr codes")
	}

	return c.JSON(fiber.Map{
		"qrCodes": views,
	})
}

// New handles GET /api/qrcodes/new and returns the defaults of an empty form.
func (h *AdminHandler) New(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"destination": model.DestinationProduct,
		"title":       "",
	})
}

// Get handles GET /api/qrcodes/:id
func (h *AdminHandler) Get(c *fiber.Ctx) error {
	session, ok := middleware.ShopSession(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid qr code id",
		})
	}

	view, err := h.qrCodes.Get(c.UserContext(), session.Shop, id, h.catalogFor(c, session))
	if err != nil {
		return h.writeError(c, err, "failed to get qr code")
	}

	return c.JSON(view)
}

// Submit handles POST /api/qrcodes and POST /api/qrcodes/:id. It deletes when the form
// carries action=delete and upserts otherwise.
func (h *AdminHandler) Submit(c *fiber.Ctx) error {
	session, ok := middleware.ShopSession(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id := 0
	if c.Params("id") != "" {
		parsed, err := c.ParamsInt("id")
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid qr code id",
			})
		}
		id = parsed
	}

	var form service.QRCodeForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if form.Action == deleteAction {
		if id == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "qr code id is required",
			})
		}
		return h.delete(c, session.Shop, id)
	}

	code, err := h.qrCodes.Save(c.UserContext(), session.Shop, id, form)
	if err != nil {
		return h.writeError(c, err, "failed to save qr code")
	}

	return c.Redirect("/api/qrcodes/"+strconv.Itoa(code.ID), fiber.StatusSeeOther)
}

// Delete handles DELETE /api/qrcodes/:id
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	session, ok := middleware.ShopSession(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid qr code id",
		})
	}
	return h.delete(c, session.Shop, id)
}

func (h *AdminHandler) delete(c *fiber.Ctx, shop string, id int) error {
	if err := h.qrCodes.Delete(c.UserContext(), shop, id); err != nil {
		return h.writeError(c, err, "failed to delete qr code")
	}
	return c.Redirect("/api/qrcodes", fiber.StatusSeeOther)
}

// writeError maps service errors onto HTTP responses.
func (h *AdminHandler) writeError(c *fiber.Ctx, err error, msg string) error {
	var validation service.ValidationErrors
	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"errors": validation,
		})
	case errors.Is(err, repository.ErrQRCodeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "qr code not found",
		})
	case errors.Is(err, service.ErrCatalogUnavailable):
		h.logger.Warn(msg, zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "product catalog unavailable",
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": msg,
		})
	}
}

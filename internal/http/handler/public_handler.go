package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/http/view"
	metrics "github.com/sifan077/PowerQR/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ScanPublisher records scans outside the request path.
type ScanPublisher interface {
	Publish(info service.ScanInfo) error
}

// PublicDeps groups dependencies required by the public handlers.
type PublicDeps struct {
	Logger        *zap.Logger
	QRCodes       service.QRCodeService
	ScanPublisher ScanPublisher
}

// PublicHandler serves the unauthenticated QR code page and scan redirect.
type PublicHandler struct {
	logger        *zap.Logger
	qrCodes       service.QRCodeService
	scanPublisher ScanPublisher
}

// NewPublicHandler creates a public handler with the provided dependencies.
func NewPublicHandler(deps PublicDeps) *PublicHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicHandler{
		logger:        logger,
		qrCodes:       deps.QRCodes,
		scanPublisher: deps.ScanPublisher,
	}
}

// Register wires public routes onto the provided router. The middlewares guard the
// /qrcodes routes only.
func (h *PublicHandler) Register(router fiber.Router, middlewares ...fiber.Handler) {
	router.Get("/health", h.Health)

	qrcodes := router.Group("/qrcodes", middlewares...)
	qrcodes.Get("/:id", h.Show)
	qrcodes.Get("/:id/scan", h.Scan)
}

// Health is a simple endpoint so we know the service is running.
func (h *PublicHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "PowerQR",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Show handles GET /qrcodes/:id and renders the title and QR image.
func (h *PublicHandler) Show(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "qr code id is required",
		})
	}

	code, image, err := h.qrCodes.Public(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrQRCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "could not find qr code",
			})
		}
		h.logger.Error("failed to load qr code", zap.Error(err), zap.Int("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	html, err := view.RenderQRCodePage(view.QRCodePageData{
		Title: code.Title,
		Image: image,
	})
	if err != nil {
		h.logger.Error("failed to render qr code page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}

	return c.
		Type("html", "utf-8").
		SendString(html)
}

// Scan handles GET /qrcodes/:id/scan: counts the scan and redirects to the destination.
func (h *PublicHandler) Scan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "qr code id is required",
		})
	}

	code, destination, err := h.qrCodes.Scan(c.UserContext(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrQRCodeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "valid qr code not found",
			})
		case errors.Is(err, service.ErrInvalidVariantID), errors.Is(err, service.ErrUnknownDestination):
			h.logger.Error("qr code has an unresolvable destination", zap.Error(err), zap.Int("id", id))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "qr code destination is invalid",
			})
		default:
			h.logger.Error("failed to scan qr code", zap.Error(err), zap.Int("id", id))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	metrics.ScansTotal.WithLabelValues(code.Destination).Inc()

	if h.scanPublisher != nil {
		// fiber reuses request buffers once the handler returns.
		info := service.ScanInfo{
			QRCodeID:       code.ID,
			Shop:           code.Shop,
			IP:             strings.Clone(c.IP()),
			UserAgent:      strings.Clone(c.Get(fiber.HeaderUserAgent)),
			DestinationURL: destination,
		}
		go h.publishScanEvent(info)
	}

	h.logger.Debug("redirecting qr code scan", zap.Int("id", id), zap.String("target", destination))
	return c.Redirect(destination, fiber.StatusFound)
}

func (h *PublicHandler) publishScanEvent(info service.ScanInfo) {
	if err := h.scanPublisher.Publish(info); err != nil {
		h.logger.Error("failed to publish scan event", zap.Error(err), zap.Int("id", info.QRCodeID))
	}
}

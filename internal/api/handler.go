package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/insightdelivered/order-reconciler/internal/config"
	"github.com/insightdelivered/order-reconciler/internal/extractor"
	"github.com/insightdelivered/order-reconciler/internal/models"
	"github.com/insightdelivered/order-reconciler/internal/reconcile"
	"github.com/insightdelivered/order-reconciler/internal/truthsource"
	"github.com/insightdelivered/order-reconciler/internal/writer"
)

const Version = "2.0.0"

// uploadFields maps multipart field names to file roles, in processing order.
var uploadFields = []struct {
	field string
	role  models.SourceMode
}{
	{"po", models.ModePO},
	{"shipdocs", models.ModeShipDocs},
	{"so", models.ModeSO},
	{"ups", models.ModeUPS},
}

// ReconcileResponse is the JSON response from the /api/reconcile endpoint.
type ReconcileResponse struct {
	Success   bool                          `json:"success"`
	Error     string                        `json:"error,omitempty"`
	RequestID string                        `json:"requestId,omitempty"`
	Strategy  models.Strategy               `json:"strategy,omitempty"`
	Summary   *models.Summary               `json:"summary,omitempty"`
	Details   []models.ReconciliationResult `json:"details,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Engine    *reconcile.Engine
	Logger    *logrus.Logger
	StaticDir string
	// BodyLimit caps uploads in bytes; zero keeps fiber's default.
	BodyLimit int
}

// NewApp builds the fiber application with every route registered.
func (h *Handler) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             h.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/reconcile", h.HandleReconcile)

	// Serve the SPA: real files first, index.html for client-side routes.
	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			index := filepath.Join(h.StaticDir, "index.html")
			if _, err := os.Stat(index); err != nil {
				return fiber.ErrNotFound
			}
			return c.SendFile(index)
		})
	}
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"engine":  "fiber",
	})
}

func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
	}

	var payloads []models.FilePayload
	for _, uf := range uploadFields {
		for _, fh := range form.File[uf.field] {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read %q: %v", fh.Filename, err))
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read %q: %v", fh.Filename, err))
			}
			payloads = append(payloads, models.FilePayload{Role: uf.role, Filename: fh.Filename, Data: data})
		}
	}
	if len(payloads) == 0 {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form fields 'po', 'shipdocs', 'so' or 'ups'.")
	}

	strategy, err := models.ParseStrategy(c.FormValue("strategy"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}
	modes, err := ParseModes(c.FormValue("modes"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}
	format := strings.ToLower(strings.TrimSpace(c.FormValue("format", "json")))
	if format != "json" && format != "csv" && format != "xlsx" {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Unknown format: %q. Use json, csv or xlsx.", format))
	}

	report, err := h.Engine.Run(c.UserContext(), payloads, reconcile.Options{Strategy: strategy, Modes: modes})
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError && h.Logger != nil {
			config.LogError(h.Logger, "api", "HandleReconcile", "reconciliation failed", len(payloads), err)
		}
		return writeError(c, status, err.Error())
	}

	switch format {
	case "csv":
		var buf bytes.Buffer
		if err := (&writer.CSVWriter{IncludeHeader: c.FormValue("header") != "false"}).Write(&buf, report); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
		}
		c.Attachment("reconciliation-" + report.RequestID + ".csv")
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := (&writer.XLSXWriter{}).Write(&buf, report); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("XLSX generation failed: %v", err))
		}
		c.Attachment("reconciliation-" + report.RequestID + ".xlsx")
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		return c.Send(buf.Bytes())
	}

	// Ensure details is never null in JSON
	details := report.Details
	if details == nil {
		details = []models.ReconciliationResult{}
	}
	return c.JSON(ReconcileResponse{
		Success:   true,
		RequestID: report.RequestID,
		Strategy:  report.Strategy,
		Summary:   &report.Summary,
		Details:   details,
	})
}

// ParseModes reads a comma-separated list of interpretations ("PO,SO").
func ParseModes(s string) ([]models.SourceMode, error) {
	var modes []models.SourceMode
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := models.ParseSourceMode(part)
		if err != nil {
			return nil, err
		}
		if m != models.ModePO && m != models.ModeSO && m != models.ModeShipDocs {
			return nil, fmt.Errorf("mode %q cannot be verified; use PO or SO", part)
		}
		modes = append(modes, m)
	}
	return modes, nil
}

// statusFor maps request-level failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrNoPayloads), errors.Is(err, truthsource.ErrNotConfigured):
		return fiber.StatusBadRequest
	case errors.Is(err, extractor.ErrUnsupportedFormat), errors.Is(err, extractor.ErrEmptyFile),
		errors.Is(err, reconcile.ErrNoUsableRows):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError renders errors that escape handlers, including recovered panics.
func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	if status >= fiber.StatusInternalServerError && h.Logger != nil {
		config.LogError(h.Logger, "api", "handleError", c.Path(), nil, err)
	}
	return writeError(c, status, err.Error())
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ReconcileResponse{
		Success: false,
		Error:   msg,
	})
}

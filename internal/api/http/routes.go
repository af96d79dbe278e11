package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"weather-widget/internal/registry"
	"weather-widget/web"
)

var validate = validator.New()

// dayPresets are the day counts offered on the configuration page.
var dayPresets = []int{1, 3, 7}

// NewApp builds the Fiber application serving the configuration page, the
// widget fragment and static assets. The registry is read-only from here;
// handlers never trigger fetches.
func NewApp(reg *registry.Registry) *fiber.App {
	engine := html.NewFileSystem(web.Views(), ".html")
	engine.AddFunc("weekday", func(ts int64) string {
		return time.Unix(ts, 0).Format("Monday")
	})
	engine.AddFunc("temp", func(t float64) string {
		return fmt.Sprintf("%+.0f°C", t)
	})
	engine.AddFunc("humidity", func(h float64) string {
		return fmt.Sprintf("%.0f%%", h*100)
	})

	app := fiber.New(fiber.Config{
		AppName:               "weather-widget",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		Views:                 engine,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Use("/static", filesystem.New(filesystem.Config{
		Root: web.Static(),
	}))

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-widget",
		})
	})

	// Root page presents widget configuration.
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{
			"Cities": reg.Cities(),
			"Days":   dayPresets,
		})
	})

	app.Get("/widget", widgetHandler(reg))

	// Any other page is 404.
	app.Use(func(c *fiber.Ctx) error {
		return render404(c)
	})

	return app
}

// widgetQuery holds query parameters for the widget endpoint.
type widgetQuery struct {
	City string `validate:"required"`
	Type string `validate:"required"`
	Days int    `validate:"required,gt=0"`
}

func widgetHandler(reg *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := widgetQuery{
			City: c.Query("city"),
			Type: c.Query("type"),
		}
		if days, err := strconv.Atoi(c.Query("days")); err == nil {
			q.Days = days
		}

		if err := validate.Struct(q); err != nil {
			return render404(c)
		}

		fc, err := reg.Forecast(q.City)
		if err != nil || fc == nil {
			return render404(c)
		}
		if q.Days > len(fc.Week) {
			return render404(c)
		}

		return c.Render("widget", fiber.Map{
			"City":    q.City,
			"Type":    q.Type,
			"Current": fc.Current,
			"Week":    fc.Week[:q.Days],
		})
	}
}

func render404(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render("404", fiber.Map{})
}

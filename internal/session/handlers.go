package session

import (
	"io"
	"strconv"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/course"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/export"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/speedevents"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, courses *course.Service, maxUploadMB int, authMiddleware fiber.Handler) {
	maxUploadBytes := maxUploadMB << 20

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		header, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		if maxUploadBytes > 0 && header.Size > int64(maxUploadBytes) {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "log exceeds upload limit")
		}

		file, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		name := c.FormValue("name")
		if name == "" {
			name = header.Filename
		}
		driverID, _ := c.Locals("driver_id").(string)

		sess, err := svc.Ingest(c.Context(), driverID, name, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		driverID, _ := c.Locals("driver_id").(string)
		sessions, err := svc.List(c.Context(), driverID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(sessions)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		sess, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return c.JSON(sess)
	})

	r.Get("/:id/samples", func(c *fiber.Ctx) error {
		data, err := svc.Data(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(data)
	})

	r.Get("/:id/laps", func(c *fiber.Ctx) error {
		courseID := c.Query("course_id")
		if courseID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "course_id required")
		}
		crs, err := courses.Get(c.Context(), courseID)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "course not found")
		}
		result, err := svc.Laps(c.Context(), c.Params("id"), crs.Timing())
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return c.JSON(result)
	})

	r.Get("/:id/speed-events", func(c *fiber.Ctx) error {
		params := speedEventParams(c)
		events, err := svc.SpeedEvents(c.Context(), c.Params("id"), params)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(events)
	})

	r.Get("/:id/export", func(c *fiber.Ctx) error {
		courseID := c.Query("course_id")
		if courseID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "course_id required")
		}
		crs, err := courses.Get(c.Context(), courseID)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "course not found")
		}
		sess, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		result, err := svc.Laps(c.Context(), sess.ID, crs.Timing())
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+sess.Name+`.xlsx"`)
		return export.Timesheet(c.Response().BodyWriter(), sess.Name, *result)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func speedEventParams(c *fiber.Ctx) speedevents.Params {
	params := speedevents.DefaultParams()
	if v, err := strconv.Atoi(c.Query("window")); err == nil && v > 0 {
		params.Window = v
	}
	if v, err := strconv.Atoi(c.Query("debounce")); err == nil && v > 0 {
		params.DebounceCount = v
	}
	if v, err := strconv.ParseInt(c.Query("min_separation_ms"), 10, 64); err == nil && v > 0 {
		params.MinSeparationMs = v
	}
	if v, err := strconv.ParseFloat(c.Query("min_swing"), 64); err == nil && v > 0 {
		params.MinSwing = v
	}
	if v, err := strconv.ParseFloat(c.Query("dead_band"), 64); err == nil && v > 0 {
		params.DeadBand = v
	}
	return params
}

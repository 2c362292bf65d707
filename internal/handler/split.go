package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/musichub/api/internal/client"
	"github.com/musichub/api/internal/service"
	"github.com/musichub/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type SplitHandler struct {
	service *service.SplitService
}

func NewSplitHandler(svc *service.SplitService) *SplitHandler {
	return &SplitHandler{service: svc}
}

// Split handles POST /splitter/split
func (h *SplitHandler) Split(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", fiber.Map{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.Submit(c.Context(), file.Filename, f)
	if err != nil {
		var unavailable *client.UnavailableError
		if errors.As(err, &unavailable) {
			return response.WorkerUnavailable(c, unavailable.Detail)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /splitter/status/:jobId
func (h *SplitHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	job, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		var unavailable *client.UnavailableError
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.As(err, &unavailable):
			return response.WorkerUnavailable(c, unavailable.Detail)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, job)
}

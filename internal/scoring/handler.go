package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"foodvision/internal/dish"
	"foodvision/internal/storage"
	"foodvision/internal/vision"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service       *Service
	maxImageBytes int64
}

func NewHandler(service *Service, maxImageBytes int64) *Handler {
	return &Handler{service: service, maxImageBytes: maxImageBytes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	analyze := rg.Group("/analyze")
	analyze.POST("/:dish_id", h.Analyze)
	analyze.POST("/batch/:dish_id", h.AnalyzeBatch)
}

func (h *Handler) input(fh *multipart.FileHeader) Input {
	return Input{
		Filename: fh.Filename,
		Read: func() (*storage.Upload, error) {
			return storage.ReadUpload(fh, h.maxImageBytes)
		},
	}
}

// --------------------------------------------------
// Single image
// --------------------------------------------------
func (h *Handler) Analyze(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field 'image' is required"})
		return
	}

	res, err := h.service.Analyze(c.Request.Context(), c.Param("dish_id"), h.input(fh))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// --------------------------------------------------
// Batch
// --------------------------------------------------
func (h *Handler) AnalyzeBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file in field 'images' is required"})
		return
	}

	files := form.File["images"]
	inputs := make([]Input, 0, len(files))
	for _, fh := range files {
		inputs = append(inputs, h.input(fh))
	}

	res, err := h.service.AnalyzeBatch(c.Request.Context(), c.Param("dish_id"), inputs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, err error) {
	dishID := c.Param("dish_id")

	switch {
	case errors.Is(err, dish.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Dish '%s' not found", dishID)})
	case errors.Is(err, ErrNotReady):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("Dish '%s' has no reference images. Upload training images via POST /training/%s", dishID, dishID),
		})
	case errors.Is(err, storage.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrTooLarge), errors.Is(err, ErrBatchTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, vision.ErrDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode image: " + err.Error()})
	case errors.Is(err, storage.ErrEmptyUpload), errors.Is(err, ErrEmptyBatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("analysis failed", "dish_id", dishID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
	}
}

package dish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"foodvision/internal/storage"

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
	dishes := rg.Group("/dishes")
	dishes.POST("", h.CreateDish)
	dishes.GET("", h.ListDishes)
	dishes.GET("/:dish_id", h.GetDish)
	dishes.PUT("/:dish_id/ingredients", h.UpdateIngredients)
	dishes.DELETE("/:dish_id", h.DeleteDish)

	training := rg.Group("/training")
	training.POST("/:dish_id", h.UploadReferences)
	training.DELETE("/:dish_id/reset", h.ResetReferences)
}

// --------------------------------------------------
// Create dish
// --------------------------------------------------
func (h *Handler) CreateDish(c *gin.Context) {
	var req struct {
		DishID      string   `json:"dish_id"`
		DishName    string   `json:"dish_name"`
		Ingredients []string `json:"ingredients"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p, err := h.service.Create(c.Request.Context(), req.DishID, req.DishName, req.Ingredients)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": fmt.Sprintf("Dish '%s' created. Upload reference images via POST /training/%s", p.DishName, p.DishID),
		"dish":    p.Summary(),
	})
}

// --------------------------------------------------
// List dishes
// --------------------------------------------------
func (h *Handler) ListDishes(c *gin.Context) {
	profiles, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	dishes := make([]Summary, 0, len(profiles))
	for _, p := range profiles {
		dishes = append(dishes, p.Summary())
	}

	c.JSON(http.StatusOK, gin.H{"dishes": dishes, "total": len(dishes)})
}

func (h *Handler) GetDish(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("dish_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p.Summary())
}

// --------------------------------------------------
// Update ingredients (bare JSON list or {"ingredients": [...]})
// --------------------------------------------------
func (h *Handler) UpdateIngredients(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var ingredients []string
	if err := json.Unmarshal(raw, &ingredients); err != nil {
		var wrapped struct {
			Ingredients *[]string `json:"ingredients"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Ingredients == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected a list of ingredients"})
			return
		}
		ingredients = *wrapped.Ingredients
	}

	p, err := h.service.UpdateIngredients(c.Request.Context(), c.Param("dish_id"), ingredients)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"dish_id":     p.DishID,
		"ingredients": p.Summary().Ingredients,
	})
}

func (h *Handler) DeleteDish(c *gin.Context) {
	dishID := c.Param("dish_id")

	if err := h.service.Delete(c.Request.Context(), dishID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Dish '%s' and all training data deleted", dishID),
	})
}

// --------------------------------------------------
// Training
// --------------------------------------------------
func (h *Handler) UploadReferences(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["images"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file in field 'images' is required"})
		return
	}

	files := form.File["images"]
	images := make([]TrainingImage, 0, len(files))
	for _, fh := range files {
		images = append(images, TrainingImage{
			Filename: fh.Filename,
			Read: func() (*storage.Upload, error) {
				return storage.ReadUpload(fh, h.maxImageBytes)
			},
		})
	}

	res, err := h.service.Train(c.Request.Context(), c.Param("dish_id"), images)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            res.ImagesAdded > 0,
		"dish_id":            res.DishID,
		"dish_name":          res.DishName,
		"images_added":       res.ImagesAdded,
		"total_references":   res.TotalReferences,
		"processed":          res.Processed,
		"errors":             res.Errors,
		"ready_for_analysis": res.ReadyForAnalysis,
	})
}

func (h *Handler) ResetReferences(c *gin.Context) {
	p, err := h.service.Reset(c.Request.Context(), c.Param("dish_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("All reference images for '%s' removed. Upload new ones to retrain.", p.DishID),
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Dish '%s' not found", c.Param("dish_id"))})
	case errors.Is(err, ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidDish):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("dish request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

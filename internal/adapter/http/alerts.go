package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/couchcryptid/hailwatch/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func init() {
	// Report validation failures by JSON field name.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

type createAlertRequest struct {
	Lat       *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lon       *float64 `json:"lon" binding:"required,gte=-180,lte=180"`
	HailSize  *float64 `json:"hail_size" binding:"required,gte=0"`
	Source    string   `json:"source" binding:"required,oneof=noaa hailstrike"`
	RoofCount int      `json:"roof_count" binding:"gte=0"`
	City      *string  `json:"city" binding:"omitempty,max=128"`
	State     *string  `json:"state" binding:"omitempty,max=64"`
	County    *string  `json:"county" binding:"omitempty,max=128"`
}

// handleCreateAlert inserts an alert submitted directly by a client. The server
// assigns the id and timestamp.
func (s *Server) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			abortWithError(c, http.StatusBadRequest, codeValidation, "Validation failed for one or more fields", validationDetails(verrs))
			return
		}
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Request body must be a JSON alert", nil)
		return
	}

	alert := domain.Alert{
		AlertID:   uuid.NewString(),
		Lat:       *req.Lat,
		Lon:       *req.Lon,
		HailSize:  *req.HailSize,
		Source:    domain.Source(req.Source),
		RoofCount: req.RoofCount,
		City:      req.City,
		State:     req.State,
		County:    req.County,
		Timestamp: domain.Now(),
	}

	if err := s.store.Insert(c.Request.Context(), alert); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			abortWithError(c, http.StatusConflict, codeConflict, "Alert already exists", nil)
			return
		}
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, codeInternal, "Failed to insert alert", nil)
		return
	}

	s.logger.Info("alert submitted", "alert_id", alert.AlertID, "source", alert.Source, "request_id", getRequestID(c))
	c.JSON(http.StatusCreated, gin.H{"status": "inserted", "data": alert})
}

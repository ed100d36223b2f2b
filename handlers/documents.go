package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/telco_backend/models"
)

// Source document writes. The response reports the write; reconciliation runs after it and never
// changes the status code.

func (h *Handlers) CreateQualification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQualificationCheck
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		q, err := models.CreateQualificationCheck(ctx, &input)
		if err != nil {
			h.fail(c, "CreateQualification", err)
			return
		}
		h.orchestrator.OnQualificationWritten(ctx, *q)
		c.JSON(http.StatusCreated, q)
	}
}

func (h *Handlers) UpdateQualification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQualificationCheck
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		q, err := models.UpdateQualificationCheck(ctx, c.Param("id"), &input)
		if err != nil {
			h.fail(c, "UpdateQualification", err)
			return
		}
		h.orchestrator.OnQualificationWritten(ctx, *q)
		c.JSON(http.StatusOK, q)
	}
}

func (h *Handlers) GetQualification() gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := models.GetQualificationCheck(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.fail(c, "GetQualification", err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

func (h *Handlers) CreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		order, err := models.CreateProductOrder(ctx, &input)
		if err != nil {
			h.fail(c, "CreateOrder", err)
			return
		}
		h.orchestrator.OnOrderWritten(ctx, *order)
		c.JSON(http.StatusCreated, order)
	}
}

type orderStateRequest struct {
	State string `json:"state"`
}

func (h *Handlers) UpdateOrderState() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderStateRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.State == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
			return
		}
		ctx := c.Request.Context()
		order, err := models.UpdateProductOrderState(ctx, c.Param("id"), req.State)
		if err != nil {
			h.fail(c, "UpdateOrderState", err)
			return
		}
		h.orchestrator.OnOrderWritten(ctx, *order)
		c.JSON(http.StatusOK, order)
	}
}

func (h *Handlers) GetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := models.GetProductOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.fail(c, "GetOrder", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

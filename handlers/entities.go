package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/models"
)

func (h *Handlers) UpdateInventoryProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.InventoryProductUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.UpdateInventoryProduct(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			h.fail(c, "UpdateInventoryProduct", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// DeleteInventoryProduct tombstones products derived from an order so a later pass does not recreate them.
func (h *Handlers) DeleteInventoryProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		product, err := models.DeleteInventoryProduct(ctx, c.Param("id"))
		if err != nil {
			h.fail(c, "DeleteInventoryProduct", err)
			return
		}
		tombstoned := product.HasProvenance()
		if tombstoned {
			h.tombstones.MarkDeleted(ctx, models.EntityKindInventoryProduct, product.ID, *product.SourceOrderId)
		}
		h.logger.WithFields(logrus.Fields{
			"module":     "handlers",
			"productId":  product.ID,
			"tombstoned": tombstoned,
		}).Info("inventory product deleted")
		c.JSON(http.StatusOK, gin.H{"success": true, "tombstoned": tombstoned})
	}
}

// ClearUserAddress tombstones the address when reconciliation wrote it, which blocks further address sync
// for the user until the history is cleared.
func (h *Handlers) ClearUserAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		before, err := models.ClearUserAddress(ctx, c.Param("id"))
		if err != nil {
			h.fail(c, "ClearUserAddress", err)
			return
		}
		tombstoned := before.HasSyncedAddress()
		if tombstoned {
			h.tombstones.MarkDeleted(ctx, models.EntityKindUserAddress, before.ID, *before.AddressSourceId)
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "tombstoned": tombstoned})
	}
}

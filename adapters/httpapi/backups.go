package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/usecase/backup"
)

func (h *handler) createBackup(c *gin.Context) {
	var in backup.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.Backups.Create(lifecycle(c), &in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) listBackups(c *gin.Context) {
	out, err := h.Backups.List(c.Request.Context(), c.Query("cluster"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getBackup(c *gin.Context) {
	out, err := h.Backups.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) deleteBackup(c *gin.Context) {
	name := c.Param("name")
	if err := h.Backups.Delete(c.Request.Context(), name); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backup_name": name, "deleted": true})
}

// restoreBackup accepts an optional body with the target cluster and provider.
func (h *handler) restoreBackup(c *gin.Context) {
	var in backup.RestoreInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	in.Name = c.Param("name")
	out, err := h.Backups.Restore(lifecycle(c), &in)
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusCreated
	if out.Status == backup.StatusPartial {
		code = http.StatusMultiStatus
	}
	c.JSON(code, out)
}

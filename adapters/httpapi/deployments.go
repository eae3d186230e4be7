package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/usecase/activity"
	"github.com/clustermaster/clustermaster/usecase/deployment"
)

// userHeader identifies the caller of deployment routes. Authentication is
// left to a fronting proxy.
const userHeader = "X-User-ID"

func (h *handler) createDeployment(c *gin.Context) {
	var in deployment.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	in.UserID = c.GetHeader(userHeader)
	out, err := h.Deployments.Create(c.Request.Context(), &in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, out)
}

func (h *handler) listDeployments(c *gin.Context) {
	out, err := h.Deployments.List(c.Request.Context(), &deployment.ListInput{UserID: c.GetHeader(userHeader)})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getDeployment(c *gin.Context) {
	out, err := h.Deployments.Get(c.Request.Context(), &deployment.GetInput{ID: c.Param("id"), UserID: c.GetHeader(userHeader)})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out.Deployment)
}

func (h *handler) destroyDeployment(c *gin.Context) {
	out, err := h.Deployments.Destroy(lifecycle(c), &deployment.DestroyInput{ID: c.Param("id"), UserID: c.GetHeader(userHeader)})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(resultCode(out.Success), out)
}

func (h *handler) listActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.Activity.List(c.Request.Context(), &activity.ListInput{ClusterName: c.Query("cluster"), Limit: limit})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) listNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.Activity.Notifications(c.Request.Context(), &activity.NotificationsInput{UnreadOnly: c.Query("unread") == "true", Limit: limit})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) markRead(c *gin.Context) {
	if err := h.Activity.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

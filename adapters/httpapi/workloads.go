package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/usecase/monitoring"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

type installRequest struct {
	App       string         `json:"app" binding:"required"`
	Chart     string         `json:"chart" binding:"required"`
	Namespace string         `json:"namespace"`
	Values    map[string]any `json:"values"`
}

func (h *handler) installApp(c *gin.Context) {
	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.Workloads.Install(lifecycle(c), &workload.InstallInput{
		Cluster:   c.Param("name"),
		App:       req.App,
		Chart:     req.Chart,
		Namespace: req.Namespace,
		Values:    req.Values,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) listApps(c *gin.Context) {
	out, err := h.Workloads.List(c.Request.Context(), &workload.ListInput{Cluster: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) uninstallApp(c *gin.Context) {
	out, err := h.Workloads.Uninstall(lifecycle(c), &workload.UninstallInput{Cluster: c.Param("name"), App: c.Param("app")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) searchCharts(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	max, _ := strconv.Atoi(c.Query("max"))
	out, err := h.Workloads.SearchCharts(c.Request.Context(), &workload.SearchInput{Query: q, Max: max})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apps": h.Workloads.Catalog()})
}

func (h *handler) installMonitoring(c *gin.Context) {
	out, err := h.Monitoring.Install(lifecycle(c), &monitoring.InstallInput{Cluster: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) uninstallMonitoring(c *gin.Context) {
	out, err := h.Monitoring.Uninstall(lifecycle(c), &monitoring.UninstallInput{Cluster: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusOK
	if out.Status == monitoring.StatusPartial {
		code = http.StatusBadGateway
	}
	c.JSON(code, out)
}

func (h *handler) monitoringStatus(c *gin.Context) {
	out, err := h.Monitoring.Status(c.Request.Context(), &monitoring.StatusInput{Cluster: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

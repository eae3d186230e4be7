package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/usecase/cluster"
)

type createClusterRequest struct {
	Name              string `json:"name" binding:"required"`
	Provider          string `json:"provider" binding:"required,oneof=kind k3d"`
	ControlPlanes     int    `json:"control_planes" binding:"gte=0,lte=7"`
	Workers           int    `json:"workers" binding:"gte=0,lte=50"`
	InstallMonitoring *bool  `json:"install_monitoring"`
	K8sVersion        string `json:"k8s_version"`
	Image             string `json:"image"`
}

type scaleRequest struct {
	Workers *int `json:"workers" binding:"required,gte=0,lte=50"`
}

// lifecycle detaches ctx from the request so that a client disconnect does
// not abort a provider call halfway.
func lifecycle(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *handler) createCluster(c *gin.Context) {
	var req createClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	monitoring := true
	if req.InstallMonitoring != nil {
		monitoring = *req.InstallMonitoring
	}
	out, err := h.Clusters.Create(lifecycle(c), &cluster.CreateInput{
		Name:              req.Name,
		Provider:          req.Provider,
		ControlPlanes:     req.ControlPlanes,
		Workers:           req.Workers,
		InstallMonitoring: monitoring,
		K8sVersion:        req.K8sVersion,
		Image:             req.Image,
	})
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusCreated
	switch out.Status {
	case cluster.StatusExists:
		code = http.StatusOK
	case cluster.StatusFailed:
		code = http.StatusBadGateway
	}
	c.JSON(code, out)
}

func (h *handler) listClusters(c *gin.Context) {
	out, err := h.Clusters.List(c.Request.Context(), &cluster.ListInput{Detailed: c.Query("detailed") == "true"})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getCluster(c *gin.Context) {
	out, err := h.Clusters.Get(c.Request.Context(), &cluster.GetInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) deleteCluster(c *gin.Context) {
	out, err := h.Clusters.Delete(lifecycle(c), &cluster.DeleteInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(resultCode(out.Success), out)
}

func (h *handler) scaleCluster(c *gin.Context) {
	var req scaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.Clusters.Scale(lifecycle(c), &cluster.ScaleInput{Name: c.Param("name"), Workers: *req.Workers})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(resultCode(out.Success), out)
}

func (h *handler) startCluster(c *gin.Context) {
	out, err := h.Clusters.Start(lifecycle(c), &cluster.PowerInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(resultCode(out.Success), out)
}

func (h *handler) stopCluster(c *gin.Context) {
	out, err := h.Clusters.Stop(lifecycle(c), &cluster.PowerInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(resultCode(out.Success), out)
}

func (h *handler) clusterNodes(c *gin.Context) {
	out, err := h.Clusters.Nodes(c.Request.Context(), &cluster.NodesInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) clusterURLs(c *gin.Context) {
	out, err := h.Clusters.URLs(c.Request.Context(), &cluster.URLsInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) clusterState(c *gin.Context) {
	out, err := h.Clusters.State(c.Request.Context(), &cluster.StateInput{Name: c.Param("name")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) listPorts(c *gin.Context) {
	out, err := h.Clusters.Ports(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out})
}

func (h *handler) getPorts(c *gin.Context) {
	out, err := h.Clusters.PortsOf(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) releasePorts(c *gin.Context) {
	name := c.Param("name")
	released, err := h.Clusters.ReleasePorts(c.Request.Context(), name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cluster_name": name, "released": released})
}

func (h *handler) prunePorts(c *gin.Context) {
	out, err := h.Clusters.PrunePorts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// resultCode reports failed operations that carry a result body as 502.
func resultCode(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusBadGateway
}

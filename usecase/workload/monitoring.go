package workload

import (
	"fmt"

	"github.com/clustermaster/clustermaster/domain/model"
)

const (
	// MonitoringNamespace holds the monitoring bundle.
	MonitoringNamespace = "monitoring"

	PrometheusChart   = "prometheus-community/prometheus"
	GrafanaChart      = "grafana/grafana"
	PrometheusService = "prometheus-server"
	GrafanaService    = "grafana"

	// Grafana credentials set by the bundle.
	GrafanaAdminUser     = "admin"
	GrafanaAdminPassword = "admin123"

	prometheusLocalBase = 9090
	grafanaLocalBase    = 3000
)

// MonitoringBundle returns the installs of the time-series database and the
// dashboard for cluster. Their services are exposed as NodePorts on the
// ports allocated to the cluster.
func MonitoringBundle(ref model.ClusterRef, ports model.PortAssignment) []*InstallInput {
	promValues := map[string]any{
		"server": map[string]any{
			"fullnameOverride": PrometheusService,
			"service": map[string]any{
				"type":     "NodePort",
				"nodePort": ports[model.PortRolePrometheus],
			},
		},
		"alertmanager":             map[string]any{"enabled": false},
		"prometheus-pushgateway":   map[string]any{"enabled": false},
		"prometheus-node-exporter": map[string]any{"enabled": true},
		"kube-state-metrics":       map[string]any{"enabled": true},
	}
	grafanaValues := map[string]any{
		"fullnameOverride": GrafanaService,
		"adminUser":        GrafanaAdminUser,
		"adminPassword":    GrafanaAdminPassword,
		"service": map[string]any{
			"type":     "NodePort",
			"nodePort": ports[model.PortRoleGrafana],
		},
		"datasources": map[string]any{
			"datasources.yaml": map[string]any{
				"apiVersion": 1,
				"datasources": []any{
					map[string]any{
						"name":      "Prometheus",
						"type":      "prometheus",
						"url":       fmt.Sprintf("http://%s.%s.svc.cluster.local", PrometheusService, MonitoringNamespace),
						"access":    "proxy",
						"isDefault": true,
					},
				},
			},
		},
	}
	return []*InstallInput{
		{Cluster: ref.Name, Provider: ref.Provider, App: "prometheus", Chart: PrometheusChart, Namespace: MonitoringNamespace, Values: promValues},
		{Cluster: ref.Name, Provider: ref.Provider, App: "grafana", Chart: GrafanaChart, Namespace: MonitoringNamespace, Values: grafanaValues},
	}
}

// MonitoringForwards returns the port forwards of the bundle services. Local
// ports are offset by the slot of the cluster's port assignment so forwards
// of different clusters do not collide.
func MonitoringForwards(ports model.PortAssignment) []model.ForwardSpec {
	offset := 0
	if p, ok := ports[model.PortRolePrometheus]; ok {
		offset = p - model.PortRoleBases[model.PortRolePrometheus]
	}
	return []model.ForwardSpec{
		{Role: model.PortRolePrometheus, Namespace: MonitoringNamespace, Service: PrometheusService, LocalPort: prometheusLocalBase + offset, RemotePort: 80},
		{Role: model.PortRoleGrafana, Namespace: MonitoringNamespace, Service: GrafanaService, LocalPort: grafanaLocalBase + offset, RemotePort: 80},
	}
}

package workload

// CatalogApp is a ready-to-install application.
type CatalogApp struct {
	Name        string `json:"name"`
	Chart       string `json:"chart"`
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
}

var catalog = []CatalogApp{
	{Name: "nginx", Chart: "bitnami/nginx", Namespace: "web", Description: "NGINX web server"},
	{Name: "redis", Chart: "bitnami/redis", Namespace: "data", Description: "Redis key-value store"},
	{Name: "postgresql", Chart: "bitnami/postgresql", Namespace: "data", Description: "PostgreSQL database"},
	{Name: "jenkins", Chart: "jenkins/jenkins", Namespace: "ci", Description: "Jenkins automation server"},
	{Name: "gitea", Chart: "gitea-charts/gitea", Namespace: "git", Description: "Gitea self-hosted Git service"},
	{Name: "prometheus", Chart: "prometheus-community/prometheus", Namespace: MonitoringNamespace, Description: "Prometheus monitoring system"},
	{Name: "grafana", Chart: "grafana/grafana", Namespace: MonitoringNamespace, Description: "Grafana dashboards"},
	{Name: "ingress-nginx", Chart: "nginx/ingress-nginx", Namespace: "ingress-nginx", Description: "Ingress controller for NGINX"},
	{Name: "traefik", Chart: "traefik/traefik", Namespace: "traefik", Description: "Traefik edge router"},
}

// Catalog returns the well-known applications offered for installation.
func (u *UseCase) Catalog() []CatalogApp {
	out := make([]CatalogApp, len(catalog))
	copy(out, catalog)
	return out
}

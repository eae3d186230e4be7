package workload

import (
	"strings"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

const (
	// DefaultNamespace is used when an install names no namespace.
	DefaultNamespace = "default"
	// DefaultInstallTimeout bounds an install including the wait for readiness.
	DefaultInstallTimeout = 10 * time.Minute
	// DefaultUninstallTimeout bounds an uninstall.
	DefaultUninstallTimeout = 120 * time.Second
)

// Repo is a well-known chart repository selected by chart prefix.
type Repo struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// Repos lists the chart repositories registered on demand.
var Repos = []Repo{
	{Prefix: "bitnami/", Name: "bitnami", URL: "https://charts.bitnami.com/bitnami"},
	{Prefix: "jenkins/", Name: "jenkins", URL: "https://charts.jenkins.io"},
	{Prefix: "gitea-charts/", Name: "gitea-charts", URL: "https://dl.gitea.io/charts/"},
	{Prefix: "prometheus-community/", Name: "prometheus-community", URL: "https://prometheus-community.github.io/helm-charts"},
	{Prefix: "grafana/", Name: "grafana", URL: "https://grafana.github.io/helm-charts"},
	{Prefix: "nginx/", Name: "nginx", URL: "https://kubernetes.github.io/ingress-nginx"},
	{Prefix: "traefik/", Name: "traefik", URL: "https://helm.traefik.io/traefik"},
}

// RepoFor returns the repository serving chart.
func RepoFor(chart string) (Repo, bool) {
	for _, r := range Repos {
		if strings.HasPrefix(chart, r.Prefix) {
			return r, true
		}
	}
	return Repo{}, false
}

// UseCase installs and removes chart releases on clusters.
type UseCase struct {
	ClusterPort model.ClusterPort
	ReleasePort model.ReleasePort
	// InstallTimeout overrides DefaultInstallTimeout.
	InstallTimeout time.Duration
}

func (u *UseCase) installTimeout() time.Duration {
	if u.InstallTimeout > 0 {
		return u.InstallTimeout
	}
	return DefaultInstallTimeout
}

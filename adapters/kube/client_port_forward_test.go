package kube_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/clustermaster/clustermaster/adapters/kube"
)

func TestPortForwardOptions_Validation(t *testing.T) {
	client := &kube.Client{Clientset: fake.NewSimpleClientset()}

	tests := []struct {
		name string
		opts *kube.PortForwardOptions
	}{
		{name: "nil options"},
		{name: "missing pod name", opts: &kube.PortForwardOptions{Namespace: "monitoring", LocalPort: 9090, RemotePort: 9090}},
		{name: "missing namespace", opts: &kube.PortForwardOptions{PodName: "prometheus-server-0", LocalPort: 9090, RemotePort: 9090}},
		{name: "invalid remote port", opts: &kube.PortForwardOptions{Namespace: "monitoring", PodName: "p", LocalPort: 9090}},
		{name: "invalid local port", opts: &kube.PortForwardOptions{Namespace: "monitoring", PodName: "p", RemotePort: 9090}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := client.PortForward(ctx, tt.opts); err == nil {
				t.Error("PortForward() succeeded")
			}
		})
	}
}

func monitoringObjects() []runtime.Object {
	return []runtime.Object{
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "grafana-old", Namespace: "monitoring", Labels: map[string]string{"app": "grafana"}},
			Status:     corev1.PodStatus{Phase: corev1.PodFailed},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "grafana-7d9", Namespace: "monitoring", Labels: map[string]string{"app": "grafana"}},
			Spec: corev1.PodSpec{Containers: []corev1.Container{{
				Name:  "grafana",
				Ports: []corev1.ContainerPort{{Name: "grafana", ContainerPort: 3000}},
			}}},
			Status: corev1.PodStatus{
				Phase:             corev1.PodRunning,
				ContainerStatuses: []corev1.ContainerStatus{{Name: "grafana", Ready: true}},
			},
		},
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "grafana", Namespace: "monitoring"},
			Spec: corev1.ServiceSpec{
				Selector: map[string]string{"app": "grafana"},
				Ports:    []corev1.ServicePort{{Port: 80, TargetPort: intstr.FromString("grafana")}},
			},
		},
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Name: "headless", Namespace: "monitoring"},
			Spec:       corev1.ServiceSpec{Ports: []corev1.ServicePort{{Port: 80}}},
		},
	}
}

func TestFindPodByLabels(t *testing.T) {
	client := &kube.Client{Clientset: fake.NewSimpleClientset(monitoringObjects()...)}

	tests := []struct {
		name          string
		namespace     string
		labelSelector string
		wantPodName   string
		wantErr       bool
	}{
		{name: "empty namespace", labelSelector: "app=grafana", wantErr: true},
		{name: "empty label selector", namespace: "monitoring", wantErr: true},
		{name: "no matching pods", namespace: "monitoring", labelSelector: "app=loki", wantErr: true},
		{name: "prefers ready pod", namespace: "monitoring", labelSelector: "app=grafana", wantPodName: "grafana-7d9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pod, err := client.FindPodByLabels(context.Background(), tt.namespace, tt.labelSelector)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindPodByLabels() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && pod.Name != tt.wantPodName {
				t.Errorf("FindPodByLabels() pod name = %v, want %v", pod.Name, tt.wantPodName)
			}
		})
	}
}

func TestServiceTarget(t *testing.T) {
	client := &kube.Client{Clientset: fake.NewSimpleClientset(monitoringObjects()...)}
	ctx := context.Background()

	pod, port, err := client.ServiceTarget(ctx, "monitoring", "grafana", 80)
	if err != nil {
		t.Fatalf("ServiceTarget() error: %v", err)
	}
	if pod.Name != "grafana-7d9" || port != 3000 {
		t.Errorf("ServiceTarget() = %s:%d", pod.Name, port)
	}
	if _, _, err := client.ServiceTarget(ctx, "monitoring", "grafana", 8080); err == nil {
		t.Error("unknown service port accepted")
	}
	if _, _, err := client.ServiceTarget(ctx, "monitoring", "headless", 80); err == nil {
		t.Error("service without selector accepted")
	}
}

func TestNewClientForContext(t *testing.T) {
	cfg := clientcmdapi.Config{
		Clusters: map[string]*clientcmdapi.Cluster{
			"kind-demo": {Server: "https://127.0.0.1:6443"},
			"k3d-demo":  {Server: "https://127.0.0.1:6550"},
		},
		Contexts: map[string]*clientcmdapi.Context{
			"kind-demo": {Cluster: "kind-demo", AuthInfo: "user"},
			"k3d-demo":  {Cluster: "k3d-demo", AuthInfo: "user"},
		},
		AuthInfos:      map[string]*clientcmdapi.AuthInfo{"user": {Token: "token"}},
		CurrentContext: "kind-demo",
	}
	data, err := clientcmd.Write(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	client, err := kube.NewClientForContext("k3d-demo", &kube.Options{Kubeconfig: path})
	if err != nil {
		t.Fatalf("NewClientForContext() error: %v", err)
	}
	if client.RESTConfig.Host != "https://127.0.0.1:6550" {
		t.Errorf("host = %s", client.RESTConfig.Host)
	}
	if client.Clientset == nil || client.Metrics == nil {
		t.Error("clients not built")
	}
	if _, err := kube.NewClientForContext("missing", &kube.Options{Kubeconfig: path}); err == nil {
		t.Error("unknown context accepted")
	}
}

func TestClientsCache(t *testing.T) {
	built := 0
	clients := &kube.Clients{New: func(string) (*kube.Client, error) {
		built++
		return &kube.Client{Clientset: fake.NewSimpleClientset()}, nil
	}}
	a, _ := clients.For("kind-demo")
	b, _ := clients.For("kind-demo")
	if a != b || built != 1 {
		t.Errorf("client rebuilt: built=%d", built)
	}
	clients.Forget("kind-demo")
	_, _ = clients.For("kind-demo")
	if built != 2 {
		t.Errorf("built = %d after Forget", built)
	}
}

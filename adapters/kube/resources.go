package kube

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
)

// Resources implements model.ResourcePort with kubectl.
type Resources struct {
	Runner execx.Runner
}

var _ model.ResourcePort = (*Resources)(nil)

func (r *Resources) kubectl(ctx context.Context, kubeContext string, stdin []byte, args ...string) *execx.Result {
	args = append(args, "--context", kubeContext)
	return r.Runner.Run(ctx, execx.Cmd{Name: "kubectl", Args: args, Stdin: stdin, Timeout: execx.LongTimeout})
}

// Namespaces runs "kubectl get namespaces".
func (r *Resources) Namespaces(ctx context.Context, kubeContext string) ([]string, error) {
	res := r.kubectl(ctx, kubeContext, nil, "get", "namespaces", "-o", "jsonpath={.items[*].metadata.name}")
	if err := res.Err(); err != nil {
		return nil, err
	}
	return strings.Fields(res.Stdout), nil
}

// Export runs "kubectl get -o yaml" and cleans the result with CleanManifests.
func (r *Resources) Export(ctx context.Context, kubeContext, resource, namespace string) ([]byte, int, error) {
	args := []string{"get", resource, "-o", "yaml"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	res := r.kubectl(ctx, kubeContext, nil, args...)
	if err := res.Err(); err != nil {
		return nil, 0, err
	}
	return CleanManifests([]byte(res.Stdout))
}

// Apply pipes manifest into "kubectl apply -f -".
func (r *Resources) Apply(ctx context.Context, kubeContext string, manifest []byte) error {
	return r.kubectl(ctx, kubeContext, manifest, "apply", "-f", "-").Err()
}

var droppedMetadata = []string{"resourceVersion", "uid", "generation", "managedFields", "creationTimestamp", "selfLink"}

var droppedAnnotations = []string{
	"kubectl.kubernetes.io/last-applied-configuration",
	"deployment.kubernetes.io/revision",
	"pv.kubernetes.io/",
	"volume.kubernetes.io/",
	"volume.beta.kubernetes.io/",
}

// CleanManifests turns "kubectl get -o yaml" output into a multi-document
// manifest that can be applied to another cluster. Server-set fields and
// status are removed. Objects owned by other objects and objects the
// control plane creates by itself are skipped. It returns nil when no
// object is left.
func CleanManifests(data []byte) ([]byte, int, error) {
	var list map[string]any
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, 0, fmt.Errorf("parse manifests: %w", err)
	}
	items, isList := list["items"].([]any)
	if !isList && list["kind"] != nil {
		items = []any{list}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	n := 0
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok || !cleanObject(obj) {
			continue
		}
		if err := enc.Encode(obj); err != nil {
			return nil, 0, fmt.Errorf("encode %v: %w", obj["kind"], err)
		}
		n++
	}
	if err := enc.Close(); err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}
	return buf.Bytes(), n, nil
}

// cleanObject strips obj in place and reports whether it should be kept.
func cleanObject(obj map[string]any) bool {
	meta, _ := obj["metadata"].(map[string]any)
	if meta == nil {
		return false
	}
	if refs, _ := meta["ownerReferences"].([]any); len(refs) > 0 {
		return false
	}
	name, _ := meta["name"].(string)
	kind, _ := obj["kind"].(string)
	if builtIn(kind, name, meta, obj) {
		return false
	}

	for _, f := range droppedMetadata {
		delete(meta, f)
	}
	if ann, ok := meta["annotations"].(map[string]any); ok {
		for k := range ann {
			for _, p := range droppedAnnotations {
				if strings.HasPrefix(k, p) {
					delete(ann, k)
				}
			}
		}
		if len(ann) == 0 {
			delete(meta, "annotations")
		}
	}
	delete(obj, "status")

	spec, _ := obj["spec"].(map[string]any)
	switch kind {
	case "Service":
		delete(spec, "clusterIP")
		delete(spec, "clusterIPs")
	case "PersistentVolumeClaim":
		delete(spec, "volumeName")
	}
	return true
}

// builtIn reports objects every new cluster already has.
func builtIn(kind, name string, meta, obj map[string]any) bool {
	switch {
	case strings.HasPrefix(name, "system:"):
		return true
	case kind == "Service" && name == "kubernetes" && meta["namespace"] == "default":
		return true
	case kind == "ConfigMap" && name == "kube-root-ca.crt":
		return true
	case kind == "ServiceAccount" && name == "default":
		return true
	case kind == "Secret" && obj["type"] == "kubernetes.io/service-account-token":
		return true
	}
	return false
}

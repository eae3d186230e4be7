package kube

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ManagedByLabel marks namespaces created by clustermaster.
const ManagedByLabel = "app.kubernetes.io/managed-by"

// EnsureNamespace creates namespace name unless it exists. Namespaces are
// created with ManagedByLabel; existing ones are left untouched.
func (c *Client) EnsureNamespace(ctx context.Context, name string) error {
	if c == nil || c.Clientset == nil {
		return errors.New("kube client is not initialized")
	}
	if name == "" {
		return errors.New("namespace name is empty")
	}
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
		Name:   name,
		Labels: map[string]string{ManagedByLabel: "clustermaster"},
	}}
	_, err := c.Clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	switch {
	case err == nil, apierrors.IsAlreadyExists(err):
		return nil
	default:
		return fmt.Errorf("create namespace %s: %w", name, err)
	}
}

// DeleteNamespace deletes namespace name in the background. A missing
// namespace reports false without an error.
func (c *Client) DeleteNamespace(ctx context.Context, name string) (bool, error) {
	if c == nil || c.Clientset == nil {
		return false, errors.New("kube client is not initialized")
	}
	policy := metav1.DeletePropagationBackground
	err := c.Clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &policy})
	switch {
	case err == nil:
		return true, nil
	case apierrors.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("delete namespace %s: %w", name, err)
	}
}

package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// portForwardReadyTimeout bounds the wait for a forward to start listening.
const portForwardReadyTimeout = 30 * time.Second

// PortForwardOptions configures port forwarding behavior.
type PortForwardOptions struct {
	// Namespace of the target pod
	Namespace string
	// PodName is the name of the target pod
	PodName string
	// LocalPort is the local port to bind to
	LocalPort int
	// RemotePort is the container port to forward to
	RemotePort int
}

// PortForwardResult is a running forward.
type PortForwardResult struct {
	LocalPort int
	// Done receives the forwarding error, or nil, when the forward ends.
	Done <-chan error
	// StopFunc stops forwarding. It is safe to call more than once.
	StopFunc func()
}

// PortForward sets up port forwarding to a pod and returns when ready.
func (c *Client) PortForward(ctx context.Context, opts *PortForwardOptions) (*PortForwardResult, error) {
	if opts == nil {
		return nil, fmt.Errorf("PortForwardOptions is required")
	}
	if opts.PodName == "" {
		return nil, fmt.Errorf("PodName is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("Namespace is required")
	}
	if opts.RemotePort <= 0 || opts.LocalPort <= 0 {
		return nil, fmt.Errorf("LocalPort and RemotePort must be positive")
	}

	pod, err := c.Clientset.CoreV1().Pods(opts.Namespace).Get(ctx, opts.PodName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get pod %s/%s: %w", opts.Namespace, opts.PodName, err)
	}
	if pod.Status.Phase != corev1.PodRunning {
		return nil, fmt.Errorf("pod %s/%s is not running (phase: %s)", opts.Namespace, opts.PodName, pod.Status.Phase)
	}

	path := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s/portforward", opts.Namespace, opts.PodName)
	var hostPort string
	if u, err := url.Parse(c.RESTConfig.Host); err == nil && u.Host != "" {
		hostPort = u.Host
	} else {
		hostPort = c.RESTConfig.Host
	}
	serverURL := url.URL{Scheme: "https", Path: path, Host: hostPort}

	transport, upgrader, err := spdy.RoundTripperFor(c.RESTConfig)
	if err != nil {
		return nil, fmt.Errorf("create SPDY transport: %w", err)
	}

	readyChan := make(chan struct{})
	doneChan := make(chan error, 1)
	stopChan := make(chan struct{})
	stop := stopOnce(stopChan)

	ports := []string{fmt.Sprintf("%d:%d", opts.LocalPort, opts.RemotePort)}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, &serverURL)
	fw, err := portforward.NewOnAddresses(dialer, []string{"127.0.0.1"}, ports, stopChan, readyChan, io.Discard, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("create port forwarder: %w", err)
	}

	go func() {
		doneChan <- fw.ForwardPorts()
		close(doneChan)
	}()

	select {
	case <-readyChan:
		return &PortForwardResult{LocalPort: opts.LocalPort, Done: doneChan, StopFunc: stop}, nil
	case err := <-doneChan:
		return nil, fmt.Errorf("port forward failed: %w", err)
	case <-ctx.Done():
		stop()
		return nil, fmt.Errorf("port forward canceled: %w", ctx.Err())
	case <-time.After(portForwardReadyTimeout):
		stop()
		return nil, fmt.Errorf("port forward timeout")
	}
}

func stopOnce(ch chan struct{}) func() {
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// FindPodByLabels finds a pod in the given namespace matching the label selector.
// Returns the first pod found that is either Ready or at least not terminated.
func (c *Client) FindPodByLabels(ctx context.Context, namespace, labelSelector string) (*corev1.Pod, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if labelSelector == "" {
		return nil, fmt.Errorf("labelSelector is required")
	}

	pods, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	if len(pods.Items) == 0 {
		return nil, fmt.Errorf("no pods found with selector %s", labelSelector)
	}

	var readyPod, nonTerminatedPod *corev1.Pod
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.DeletionTimestamp != nil {
			continue
		}
		ready := false
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.Ready {
				ready = true
				break
			}
		}
		if ready {
			readyPod = pod
			break
		} else if nonTerminatedPod == nil && pod.Status.Phase != corev1.PodFailed && pod.Status.Phase != corev1.PodSucceeded {
			nonTerminatedPod = pod
		}
	}

	if readyPod != nil {
		return readyPod, nil
	}
	if nonTerminatedPod != nil {
		return nonTerminatedPod, nil
	}
	return &pods.Items[0], nil
}

// ServiceTarget resolves a service port to a backing pod and the container
// port it targets, the way kubectl port-forward svc/NAME does.
func (c *Client) ServiceTarget(ctx context.Context, namespace, service string, port int) (*corev1.Pod, int, error) {
	svc, err := c.Clientset.CoreV1().Services(namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get service %s/%s: %w", namespace, service, err)
	}
	if len(svc.Spec.Selector) == 0 {
		return nil, 0, fmt.Errorf("service %s/%s has no selector", namespace, service)
	}
	pod, err := c.FindPodByLabels(ctx, namespace, labels.SelectorFromSet(svc.Spec.Selector).String())
	if err != nil {
		return nil, 0, err
	}
	for _, sp := range svc.Spec.Ports {
		if int(sp.Port) != port {
			continue
		}
		switch {
		case sp.TargetPort.Type == intstr.Int && sp.TargetPort.IntValue() > 0:
			return pod, sp.TargetPort.IntValue(), nil
		case sp.TargetPort.Type == intstr.String && sp.TargetPort.StrVal != "":
			for _, ctr := range pod.Spec.Containers {
				for _, cp := range ctr.Ports {
					if cp.Name == sp.TargetPort.StrVal {
						return pod, int(cp.ContainerPort), nil
					}
				}
			}
			return nil, 0, fmt.Errorf("service %s/%s: named port %q not found on pod %s", namespace, service, sp.TargetPort.StrVal, pod.Name)
		}
		return pod, port, nil
	}
	return nil, 0, fmt.Errorf("service %s/%s has no port %d", namespace, service, port)
}

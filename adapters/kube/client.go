package kube

import (
	"fmt"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Client wraps commonly used Kubernetes clients and the underlying REST config.
type Client struct {
	// RESTConfig is the configuration used to talk to the API server.
	RESTConfig *rest.Config
	// Clientset provides typed clients for core/built-in resources.
	Clientset kubernetes.Interface
	// Metrics reads the metrics.k8s.io API. It is nil when not configured.
	Metrics metricsclient.Interface
}

// Options controls client construction tuning. All fields are optional.
type Options struct {
	// Kubeconfig overrides the default kubeconfig loading rules.
	Kubeconfig string
	// UserAgent adds a custom user agent to the REST config.
	UserAgent string
	// QPS sets the allowed queries per second on the REST client.
	QPS float32
	// Burst sets the client-side rate limiter burst.
	Burst int
}

func (o *Options) applyDefaults() {
	if o.QPS <= 0 {
		o.QPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 50
	}
}

// RESTConfigForContext loads the default kubeconfig (KUBECONFIG or
// ~/.kube/config) with the current context overridden by kubeContext.
func RESTConfigForContext(kubeContext, kubeconfig string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig context %q: %w", kubeContext, err)
	}
	return cfg, nil
}

// NewClientForContext constructs a Client for a kube context of the default kubeconfig.
func NewClientForContext(kubeContext string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	cfg, err := RESTConfigForContext(kubeContext, opts.Kubeconfig)
	if err != nil {
		return nil, err
	}
	return NewClientFromRESTConfig(cfg, opts)
}

// NewClientFromRESTConfig constructs a Client from an existing rest.Config.
func NewClientFromRESTConfig(cfg *rest.Config, opts *Options) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("REST config is nil")
	}
	if opts == nil {
		opts = &Options{}
	}
	opts.applyDefaults()

	cfg.QPS = opts.QPS
	cfg.Burst = opts.Burst
	if opts.UserAgent != "" {
		_ = rest.AddUserAgent(cfg, opts.UserAgent)
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}
	mc, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build metrics clientset: %w", err)
	}
	return &Client{RESTConfig: cfg, Clientset: cs, Metrics: mc}, nil
}

// Clients builds and caches one Client per kube context.
type Clients struct {
	// Options are used for every client built by the default constructor.
	Options *Options
	// New overrides the constructor, mainly for tests.
	New func(kubeContext string) (*Client, error)

	mu        sync.Mutex
	byContext map[string]*Client
}

// For returns the client of kubeContext, building it on first use.
func (c *Clients) For(kubeContext string) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.byContext[kubeContext]; ok {
		return cl, nil
	}
	build := c.New
	if build == nil {
		build = func(kc string) (*Client, error) {
			var opts Options
			if c.Options != nil {
				opts = *c.Options
			}
			return NewClientForContext(kc, &opts)
		}
	}
	cl, err := build(kubeContext)
	if err != nil {
		return nil, err
	}
	if c.byContext == nil {
		c.byContext = map[string]*Client{}
	}
	c.byContext[kubeContext] = cl
	return cl, nil
}

// Forget drops the cached client of kubeContext. Clusters recreated under
// the same name get a new API server endpoint.
func (c *Clients) Forget(kubeContext string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byContext, kubeContext)
}

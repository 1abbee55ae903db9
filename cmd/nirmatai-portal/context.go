package main

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/CertX-AI/NirmatAI-WebApp/analysis"
	"github.com/CertX-AI/NirmatAI-WebApp/config"
	"github.com/CertX-AI/NirmatAI-WebApp/portal"
	"github.com/CertX-AI/NirmatAI-WebApp/proclock"
	"github.com/CertX-AI/NirmatAI-WebApp/proclock/store"
)

var ownerPattern = regexp.MustCompile(`^.{8,}$`)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) newLocker() (*proclock.Locker, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	var s store.Store
	switch cfg.Lock.Backend {
	case config.BackendFile:
		s = store.NewFileStore(cfg.Lock.Path)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.Redis.Addr,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
		})
		s = store.NewRedisStore(client, cfg.Lock.Redis.Key)
	case config.BackendEtcd:
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Lock.Etcd.Endpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to etcd: %w", err)
		}
		s = store.NewEtcdStore(client, cfg.Lock.Etcd.Key)
	case config.BackendKubernetes:
		client, err := kubernetesClient()
		if err != nil {
			return nil, err
		}
		s = store.NewKubernetesStore(client, cfg.Lock.Kubernetes.Namespace, cfg.Lock.Kubernetes.LeaseName)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}

	return proclock.New(s, cfg.DefaultLockDuration())
}

func (c *commandContext) newWorkspace() (*portal.Workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return portal.NewWorkspace(cfg.UploadRoot)
}

func (c *commandContext) newRunner() (*portal.Runner, *portal.Workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	locker, err := c.newLocker()
	if err != nil {
		return nil, nil, err
	}
	workspace, err := c.newWorkspace()
	if err != nil {
		return nil, nil, err
	}
	client := analysis.NewClient(cfg.BaseURL, cfg.AnalysisTimeout())
	return portal.NewRunner(locker, client, workspace, cfg.PerRequirementWindow()), workspace, nil
}

func validateOwner(owner string) error {
	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("owner must be at least 8 characters long")
	}
	return nil
}

func kubernetesClient() (kubernetes.Interface, error) {
	if restConfig, err := rest.InClusterConfig(); err == nil {
		return kubernetes.NewForConfig(restConfig)
	}
	loading := clientcmd.NewDefaultClientConfigLoadingRules()
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loading, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	return kubernetes.NewForConfig(restConfig)
}

package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/discovery"
)

// Registry is the in-memory implementation used by tests and local
// development, so no Consul agent is required.
type Registry struct {
	sync.RWMutex
	addrs map[string]map[string]*serviceInstance
}

type serviceInstance struct {
	hostPort   string
	lastActive time.Time
}

func NewRegistry() *Registry {
	return &Registry{addrs: map[string]map[string]*serviceInstance{}}
}

func (r *Registry) Register(ctx context.Context, instanceID, serviceName, hostPort string) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.addrs[serviceName]; !ok {
		r.addrs[serviceName] = map[string]*serviceInstance{}
	}

	r.addrs[serviceName][instanceID] = &serviceInstance{
		hostPort:   hostPort,
		lastActive: time.Now(),
	}

	return nil
}

func (r *Registry) Deregister(ctx context.Context, instanceID, serviceName string) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.addrs[serviceName]; !ok {
		return nil
	}
	delete(r.addrs[serviceName], instanceID)
	return nil
}

func (r *Registry) Discover(ctx context.Context, serviceName string) ([]string, error) {
	r.RLock()
	defer r.RUnlock()

	instances, ok := r.addrs[serviceName]
	if !ok {
		return nil, nil
	}

	// Instances silent for over 5 seconds are considered gone.
	var addrs []string
	for _, instance := range instances {
		if time.Since(instance.lastActive) > 5*time.Second {
			continue
		}
		addrs = append(addrs, instance.hostPort)
	}

	return addrs, nil
}

func (r *Registry) HealthCheck(instanceID, serviceName string) error {
	r.Lock()
	defer r.Unlock()

	instances, ok := r.addrs[serviceName]
	if !ok {
		return errors.New("service not registered")
	}
	instance, ok := instances[instanceID]
	if !ok {
		return errors.New("instance not registered")
	}
	instance.lastActive = time.Now()
	return nil
}

var _ discovery.Registry = (*Registry)(nil)

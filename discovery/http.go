package discovery

import (
	"context"
	"fmt"
	"math/rand"
)

// ServiceBaseURL resolves one healthy instance of the named service to an
// http base URL. Instance selection is random; callers wanting stickiness
// resolve once at startup.
//
// When no registry is configured the fallback URL (from per-service env
// config) is returned, so local development works without Consul.
func ServiceBaseURL(ctx context.Context, serviceName, fallback string, registry Registry) (string, error) {
	if registry == nil {
		if fallback == "" {
			return "", fmt.Errorf("no registry and no configured URL for service %s", serviceName)
		}
		return fallback, nil
	}

	addrs, err := registry.Discover(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("no instances found for service %s", serviceName)
	}

	return "http://" + addrs[rand.Intn(len(addrs))], nil
}

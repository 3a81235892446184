package jira

import (
	"strconv"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
	"github.com/Strob0t/NexusPM/internal/resilience"
)

// Registry config keys. A positive breaker_max_failures replaces the default
// circuit breaker settings.
const (
	KeyDomain             = "domain"
	KeyEmail              = "email"
	KeyAPIToken           = "api_token"
	KeyBreakerMaxFailures = "breaker_max_failures"
	KeyBreakerTimeout     = "breaker_timeout"
)

func init() {
	pmprovider.Register(providerName, func(cfg map[string]string) (pmprovider.Provider, error) {
		var breaker *resilience.Breaker
		if n, err := strconv.Atoi(cfg[KeyBreakerMaxFailures]); err == nil && n > 0 {
			timeout, err := time.ParseDuration(cfg[KeyBreakerTimeout])
			if err != nil || timeout <= 0 {
				timeout = 30 * time.Second
			}
			breaker = resilience.NewBreaker(providerName, n, timeout)
		}
		return NewProvider(Config{
			Domain:   cfg[KeyDomain],
			Email:    cfg[KeyEmail],
			APIToken: cfg[KeyAPIToken],
		}, breaker), nil
	})
}

// Package credentials holds the ordered set of model API keys available to the process.
package credentials

import (
	"fmt"
	"strings"
)

// HealthStatus is the result of a pool health check.
type HealthStatus string

const (
	HealthHealthy      HealthStatus = "healthy"
	HealthUnconfigured HealthStatus = "unconfigured"
)

// Credential is one API secret and its position in the pool.
type Credential struct {
	Ordinal int
	secret  string
}

// Secret returns the raw API key.
func (c Credential) Secret() string {
	return c.secret
}

// String renders a masked form that is safe to log.
func (c Credential) String() string {
	return fmt.Sprintf("credential#%d(%s)", c.Ordinal, mask(c.secret))
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Pool is an immutable, ordered list of credentials. It is safe for concurrent use.
type Pool struct {
	creds []Credential
}

// NewPool builds a pool from raw secrets in priority order. Blank entries are dropped and
// duplicates keep their first position.
func NewPool(secrets ...string) *Pool {
	seen := make(map[string]struct{}, len(secrets))
	creds := make([]Credential, 0, len(secrets))
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		creds = append(creds, Credential{Ordinal: len(creds) + 1, secret: s})
	}
	return &Pool{creds: creds}
}

// Len returns the number of credentials.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.creds)
}

// Empty reports whether the pool has no credentials.
func (p *Pool) Empty() bool {
	return p.Len() == 0
}

// Credentials returns a copy of the credentials in failover order.
func (p *Pool) Credentials() []Credential {
	if p == nil {
		return nil
	}
	out := make([]Credential, len(p.creds))
	copy(out, p.creds)
	return out
}

// Health reports healthy iff the pool is non-empty. It never touches the network.
func (p *Pool) Health() HealthStatus {
	if p.Empty() {
		return HealthUnconfigured
	}
	return HealthHealthy
}

package db

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenProvider abstracts cloud token acquisition for database authentication.
type TokenProvider interface {
	// GetToken acquires a token used as the password when connecting to
	// cloud-hosted PostgreSQL. Returns the token and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String returns a human-readable description for logging.
	// Should NOT include secrets. Example: "AzureServicePrincipal(tenant=xxx, client=yyy)"
	String() string
}

// AzurePostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

// CachedTokenProvider reuses a token until it is within refreshBefore of
// expiring. Safe for concurrent use.
type CachedTokenProvider struct {
	next          TokenProvider
	refreshBefore time.Duration
	now           func() time.Time

	mu        sync.Mutex
	token     string
	expiresOn time.Time
}

// NewCachedTokenProvider wraps next with a token cache.
func NewCachedTokenProvider(next TokenProvider, refreshBefore time.Duration) *CachedTokenProvider {
	return &CachedTokenProvider{
		next:          next,
		refreshBefore: refreshBefore,
		now:           time.Now,
	}
}

// GetToken returns the cached token or fetches a new one.
func (p *CachedTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.expiresOn.Sub(p.now()) > p.refreshBefore {
		return p.token, p.expiresOn, nil
	}

	token, expiresOn, err := p.next.GetToken(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	p.token, p.expiresOn = token, expiresOn
	return token, expiresOn, nil
}

func (p *CachedTokenProvider) String() string {
	return fmt.Sprintf("Cached(%s)", p.next)
}

var _ TokenProvider = (*CachedTokenProvider)(nil)

package regdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	redis "github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	"github.com/openrdap/rdap/bootstrap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/domainregistry/regdata/internal/bufpool"
	"github.com/domainregistry/regdata/internal/cache"
	"github.com/domainregistry/regdata/internal/ltpclient"
	"github.com/domainregistry/regdata/internal/parser"
	"github.com/domainregistry/regdata/internal/rdapclient"
	"github.com/domainregistry/regdata/internal/resolver"
)

// CacheBackend enumerates the Cache implementations Config can select.
type CacheBackend string

const (
	// CacheBackendMemory is the default: an in-process, capacity-bounded LRU.
	CacheBackendMemory CacheBackend = "memory"
	// CacheBackendRedis requires Config.RedisClient to be set.
	CacheBackendRedis CacheBackend = "redis"
)

// Config configures a Client. Every field is optional; NewClientWithConfig
// fills in the documented default for any zero value, exactly as the
// teacher's NewClient defaulting block does for its Config.
type Config struct {
	// WhoisTimeout is the per-LTP-step deadline. Default 30s.
	WhoisTimeout time.Duration
	// DiscoveryTimeout is the per-RDP-step and directory-query deadline. Default 10s.
	DiscoveryTimeout time.Duration
	// MaxResponseSize caps bytes read per protocol step. Default 10 MiB.
	MaxResponseSize int64
	// MaxReferrals caps referral-engine hops. Default 10.
	MaxReferrals int

	// CacheBackend selects memory or redis. Default memory.
	CacheBackend CacheBackend
	// CacheTTL is the per-entry absolute expiry. Default 1h.
	CacheTTL time.Duration
	// CacheMaxEntries bounds cache capacity. Default 10000.
	CacheMaxEntries int
	// RedisClient is required when CacheBackend == CacheBackendRedis.
	RedisClient redis.UniversalClient
	// RedisKeyPrefix namespaces cache keys when using the Redis backend.
	RedisKeyPrefix string

	// ConcurrentWhoisQueries bounds simultaneous domain lookups. Default 8.
	ConcurrentWhoisQueries int64
	// DiscoveryConcurrency bounds simultaneous resolver discoveries. Default 4.
	DiscoveryConcurrency int64

	// BufferPoolSize is the pooled buffer count handed to the LTP client. Default 100.
	BufferPoolSize int
	// BufferSize is the per-buffer capacity handed to the LTP client. Default 16384.
	BufferSize int

	// IANAHost overrides the root WHOIS directory host. Default whois.iana.org.
	IANAHost string

	// BootstrapClient overrides the RDAP bootstrap registries client, for tests.
	BootstrapClient *bootstrap.Client
	// RDAPConfig overrides the RDP client's transport settings.
	RDAPConfig rdapclient.Config

	// Logger receives V(1) per-lookup outcome lines and V(2) swallowed
	// per-step errors. Defaults to logr.Discard().
	Logger logr.Logger
	// Debug, when true, populates CanonicalRecord.Observations and stamps
	// every log line for a lookup with a shared correlation ID.
	Debug bool
}

// Client is the lookup coordinator: a value callers share freely across
// goroutines, per spec.md §9's "shared client handle" design note.
// Internals (cache, permit pools, resolver memo) are already safe for
// concurrent use, so Client itself carries no exported mutable state.
type Client struct {
	cfg Config

	cache    cache.Cache
	resolver *resolver.Resolver
	rdap     *rdapclient.Client
	referrer *ltpclient.Referrer

	domainPermits    *semaphore.Weighted
	discoveryPermits *semaphore.Weighted

	domainSF singleflight.Group

	now func() time.Time
}

// NewClient builds a Client with every default applied and the memory cache
// enabled.
func NewClient() *Client {
	c, _ := NewClientWithConfig(Config{})
	return c
}

// NewClientWithoutCache builds a Client whose cache is always a miss on Get
// and a no-op on Set, per spec.md §6.
func NewClientWithoutCache() *Client {
	c, _ := NewClientWithConfig(Config{})
	c.cache = noopCache{}
	return c
}

// NewClientWithConfig builds a Client from cfg, defaulting every zero-valued
// field. It fails for CacheBackendRedis without a RedisClient and for an
// unknown CacheBackend.
func NewClientWithConfig(cfg Config) (*Client, error) {
	if cfg.WhoisTimeout <= 0 {
		cfg.WhoisTimeout = ltpclient.DefaultTimeout
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = rdapclient.DefaultTimeout
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = rdapclient.DefaultMaxBytes
	}
	if cfg.MaxReferrals <= 0 {
		cfg.MaxReferrals = ltpclient.DefaultMaxReferrals
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheBackendMemory
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = cache.DefaultMaxEntries
	}
	if cfg.ConcurrentWhoisQueries <= 0 {
		cfg.ConcurrentWhoisQueries = 8
	}
	if cfg.DiscoveryConcurrency <= 0 {
		cfg.DiscoveryConcurrency = 4
	}
	if cfg.BufferPoolSize <= 0 {
		cfg.BufferPoolSize = 100
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16384
	}
	if cfg.IANAHost == "" {
		cfg.IANAHost = resolver.DefaultIANAHost
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}

	var cacheImpl cache.Cache
	switch cfg.CacheBackend {
	case CacheBackendMemory:
		cacheImpl = cache.NewMemory(cfg.CacheMaxEntries, cfg.CacheTTL)
	case CacheBackendRedis:
		if cfg.RedisClient == nil {
			return nil, fmt.Errorf("regdata: redis cache backend requires Config.RedisClient")
		}
		cacheImpl = cache.NewRedis(cfg.RedisClient, cfg.RedisKeyPrefix, cfg.CacheMaxEntries)
	default:
		return nil, fmt.Errorf("regdata: unknown cache backend %q", cfg.CacheBackend)
	}

	bs := resolver.NewBootstrap(cfg.BootstrapClient)
	res := resolver.New(bs, resolver.WithIANAHost(cfg.IANAHost))

	rdapCfg := cfg.RDAPConfig
	if rdapCfg.Timeout <= 0 {
		rdapCfg.Timeout = cfg.DiscoveryTimeout
	}
	if rdapCfg.MaxBytes <= 0 {
		rdapCfg.MaxBytes = cfg.MaxResponseSize
	}
	rdapCli := rdapclient.New(rdapCfg)

	ltpCli := ltpclient.New(ltpclient.Config{
		Timeout:  cfg.WhoisTimeout,
		MaxBytes: int(cfg.MaxResponseSize),
		Pool:     bufpool.New(cfg.BufferPoolSize, cfg.BufferSize),
	})
	referrer := ltpclient.NewReferrer(ltpCli, cfg.MaxReferrals)

	return &Client{
		cfg:              cfg,
		cache:            cacheImpl,
		resolver:         res,
		rdap:             rdapCli,
		referrer:         referrer,
		domainPermits:    semaphore.NewWeighted(cfg.ConcurrentWhoisQueries),
		discoveryPermits: semaphore.NewWeighted(cfg.DiscoveryConcurrency),
		now:              time.Now,
	}, nil
}

// Lookup returns domain's registration data, serving a cached entry when
// present and unexpired.
func (c *Client) Lookup(ctx context.Context, domain string) (*CanonicalRecord, error) {
	return c.lookup(ctx, domain, LookupOptions{})
}

// LookupFresh bypasses the cache: the returned record never has Cached == true.
func (c *Client) LookupFresh(ctx context.Context, domain string) (*CanonicalRecord, error) {
	return c.lookup(ctx, domain, LookupOptions{ForceRefresh: true})
}

// lookup implements the VALIDATE -> CACHE_CHECK -> ACQUIRE_PERMIT -> RESOLVE
// -> TRY_SERVER -> PARSE -> COMPUTE_DERIVED -> CACHE_PUT -> DONE state
// machine of spec.md §4.10, generalizing the teacher's LookupDomain/
// lookupDomainFresh (RDAP-bootstrap-then-WHOIS-fallback) into iteration over
// every resolver-returned ServerSpec, RDP before LTP.
func (c *Client) lookup(ctx context.Context, domain string, opts LookupOptions) (*CanonicalRecord, error) {
	start := time.Now()
	var corrID uuid.UUID
	if c.cfg.Debug {
		corrID = uuid.New()
	}
	log := c.cfg.Logger.WithValues("correlationID", corrID.String())

	// VALIDATE
	domainNorm := normalizeDomain(domain)
	if !validateDomain(domainNorm) {
		return nil, newErr(InvalidDomain, domain, "", nil)
	}

	// CACHE_CHECK
	if !opts.ForceRefresh {
		if rec, ok := c.cacheGet(domainNorm); ok {
			rec.Cached = true
			applyDerived(rec, c.now())
			log.V(1).Info("lookup cache hit", "domain", domainNorm)
			return rec, nil
		}
	}

	// ACQUIRE_PERMIT (domain-query pool)
	if err := c.domainPermits.Acquire(ctx, 1); err != nil {
		return nil, newErr(Timeout, domainNorm, "", err)
	}
	defer c.domainPermits.Release(1)

	tld, err := effectiveTLD(domainNorm)
	if err != nil {
		return nil, err
	}

	// RESOLVE, with its own (smaller) permit pool so a burst of unknown-TLD
	// lookups cannot starve domain-query permits already held above.
	v, sfErr, _ := c.domainSF.Do("resolve:"+tld, func() (any, error) {
		if err := c.discoveryPermits.Acquire(ctx, 1); err != nil {
			return nil, newErr(Timeout, domainNorm, "", err)
		}
		defer c.discoveryPermits.Release(1)
		return c.resolver.Resolve(ctx, tld)
	})
	if sfErr != nil {
		return nil, sfErr
	}
	specs := v.([]ServerSpec)

	// TRY_SERVER: RDP before LTP, in resolver order.
	rec, err := c.tryServers(ctx, domainNorm, specs, log)
	if err != nil {
		return nil, err
	}

	if c.cfg.Debug {
		for i := range rec.Observations {
			rec.Observations[i].CorrelationID = corrID
		}
	} else {
		rec.Observations = nil
	}

	applyDerived(rec, c.now())
	rec.QueryTimeMs = time.Since(start).Milliseconds()
	rec.Cached = false

	c.cachePut(domainNorm, rec)
	log.V(1).Info("lookup complete", "domain", domainNorm, "server", rec.Server)
	return rec, nil
}

// tryServers attempts each ServerSpec in order, returning the first success.
// A recoverable per-step error is logged at V(2) and the next ServerSpec is
// tried; if every ServerSpec fails, the last classified error is returned.
func (c *Client) tryServers(ctx context.Context, domain string, specs []ServerSpec, log logr.Logger) (*CanonicalRecord, error) {
	var lastErr error
	for _, spec := range specs {
		var res parser.Result
		var raw string
		var server string
		var stepErr error

		switch spec.Kind {
		case ServerRdp:
			res, raw, stepErr = c.tryRDP(ctx, domain, spec)
			server = spec.String()
		case ServerLtp:
			res, raw, server, stepErr = c.tryLTP(ctx, domain, spec)
		default:
			continue
		}

		if stepErr != nil {
			log.V(2).Info("server attempt failed", "domain", domain, "server", spec.String(), "error", stepErr.Error())
			lastErr = stepErr
			continue
		}

		return resultToRecord(domain, server, raw, res), nil
	}

	if lastErr == nil {
		lastErr = newErr(UnsupportedTld, domain, "", nil)
	}
	return nil, lastErr
}

func (c *Client) tryRDP(ctx context.Context, domain string, spec ServerSpec) (parser.Result, string, error) {
	base, err := url.Parse(spec.BaseURL)
	if err != nil {
		return parser.Result{}, "", newErr(ProtocolDecode, domain, spec.String(), err)
	}
	res, raw, err := c.rdap.Lookup(ctx, domain, base)
	return res, raw, err
}

// tryLTP runs the referral engine starting at spec; on a mid-chain error it
// still parses whatever partial chain was gathered, per spec.md §9 Open
// Question (b)'s "return with observation" resolution. The returned server
// string identifies the chain's terminal source (spec.md §3: "server: ...
// identifier of the terminal source"), not the starting ServerSpec.
func (c *Client) tryLTP(ctx context.Context, domain string, spec ServerSpec) (parser.Result, string, string, error) {
	chain, err := c.referrer.Follow(ctx, domain, spec)
	if len(chain) == 0 {
		return parser.Result{}, "", "", err
	}

	var res parser.Result
	for _, step := range chain {
		mergeResult(&res, parser.ParseText(step.Raw))
	}
	raw := chain.RawConcat()
	server := chain.FinalServer().String()
	if err != nil {
		res.Observations = append(res.Observations, parser.Observation{
			Field: "referral_chain", Reason: err.Error(), Value: server,
		})
	}
	return res, raw, server, nil
}

// mergeResult folds src into dst, keeping dst's already-set scalar fields
// and appending/deduping list fields, so a multi-hop referral chain's
// earlier steps are not clobbered by a later, sparser step.
func mergeResult(dst *parser.Result, src parser.Result) {
	if dst.Registrar == nil {
		dst.Registrar = src.Registrar
	}
	if dst.CreationDate == nil {
		dst.CreationDate = src.CreationDate
	}
	if dst.ExpirationDate == nil {
		dst.ExpirationDate = src.ExpirationDate
	}
	if dst.UpdatedDate == nil {
		dst.UpdatedDate = src.UpdatedDate
	}
	if dst.RegistrantEmail == nil {
		dst.RegistrantEmail = src.RegistrantEmail
	}
	if dst.AdminEmail == nil {
		dst.AdminEmail = src.AdminEmail
	}
	if dst.TechEmail == nil {
		dst.TechEmail = src.TechEmail
	}
	if dst.Available == nil {
		dst.Available = src.Available
	}
	dst.NameServers = appendDedup(dst.NameServers, src.NameServers)
	dst.Status = appendDedup(dst.Status, src.Status)
	dst.Observations = append(dst.Observations, src.Observations...)
}

func appendDedup(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func resultToRecord(domain, server, raw string, res parser.Result) *CanonicalRecord {
	rec := &CanonicalRecord{
		Domain:          domain,
		Server:          server,
		Raw:             raw,
		Registrar:       res.Registrar,
		CreationDate:    res.CreationDate,
		ExpirationDate:  res.ExpirationDate,
		UpdatedDate:     res.UpdatedDate,
		NameServers:     res.NameServers,
		Status:          res.Status,
		RegistrantEmail: res.RegistrantEmail,
		AdminEmail:      res.AdminEmail,
		TechEmail:       res.TechEmail,
		Available:       res.Available,
	}
	for _, o := range res.Observations {
		rec.Observations = append(rec.Observations, Observation{Field: o.Field, Reason: o.Reason, Value: o.Value})
	}
	return rec
}

func (c *Client) cacheGet(key string) (*CanonicalRecord, bool) {
	var payload cachePayload
	found, err := c.cache.Get(key, &payload)
	if err != nil || !found {
		return nil, false
	}
	return fromCachePayload(payload), true
}

func (c *Client) cachePut(key string, rec *CanonicalRecord) {
	if err := c.cache.Set(key, toCachePayload(rec), c.cfg.CacheTTL); err != nil {
		c.cfg.Logger.V(2).Info("cache put failed", "domain", key, "error", err.Error())
	}
}

// noopCache implements cache.Cache as an always-miss, always-no-op store,
// for NewClientWithoutCache.
type noopCache struct{}

func (noopCache) Get(key string, dst any) (bool, error)              { return false, nil }
func (noopCache) Set(key string, value any, ttl time.Duration) error { return nil }
func (noopCache) Invalidate(key string) error                        { return nil }

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/port"
)

const (
	beerKeyPrefix     = "beer:"
	beerNameKeyPrefix = "beer:name:"
	beerLockKeyPrefix = "lock:beer:"
	beerSetKey        = "beers"

	defaultLockTTL   = 5 * time.Second
	defaultLockWait  = 2 * time.Second
	lockPollInterval = 5 * time.Millisecond
)

var insertBeerScript = redis.NewScript(`
local nameKey = KEYS[1]
local beerKey = KEYS[2]
local setKey = KEYS[3]

if redis.call('EXISTS', nameKey) == 1 then
	return 0
end

redis.call('SET', beerKey, ARGV[2])
redis.call('SET', nameKey, ARGV[1])
redis.call('SADD', setKey, ARGV[1])
return 1
`)

// saveBeerScript returns 1 on success, 0 on a version mismatch, a missing beer or a stale
// previous name, -1 when the new name belongs to another beer.
var saveBeerScript = redis.NewScript(`
local beerKey = KEYS[1]
local nameKey = KEYS[2]
local oldNameKey = KEYS[3]
local id = ARGV[1]
local expected = tonumber(ARGV[2])

local current = redis.call('GET', beerKey)
if not current then
	return 0
end

local stored = cjson.decode(current)
if tonumber(stored.version) ~= expected or stored.name ~= ARGV[4] then
	return 0
end

local owner = redis.call('GET', nameKey)
if owner and owner ~= id then
	return -1
end

if oldNameKey ~= nameKey then
	redis.call('DEL', oldNameKey)
end

redis.call('SET', nameKey, id)
redis.call('SET', beerKey, ARGV[3])
return 1
`)

var deleteBeerScript = redis.NewScript(`
local beerKey = KEYS[1]
local setKey = KEYS[2]
local nameKey = KEYS[3]
local id = ARGV[1]
local expected = tonumber(ARGV[2])

local current = redis.call('GET', beerKey)
if not current then
	return 0
end

local stored = cjson.decode(current)
if tonumber(stored.version) ~= expected or stored.name ~= ARGV[3] then
	return 0
end

redis.call('DEL', beerKey)
redis.call('DEL', nameKey)
redis.call('SREM', setKey, id)
return 1
`)

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type redisBeer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand"`
	Type      string    `json:"type"`
	Max       int       `json:"max"`
	Quantity  int       `json:"quantity"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRedisBeer(b domain.Beer) redisBeer {
	return redisBeer{
		ID:        b.ID,
		Name:      b.Name,
		Brand:     b.Brand,
		Type:      string(b.Type),
		Max:       b.Max,
		Quantity:  b.Quantity,
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func (r redisBeer) toDomain() domain.Beer {
	return domain.Beer{
		ID:        r.ID,
		Name:      r.Name,
		Brand:     r.Brand,
		Type:      domain.BeerType(r.Type),
		Max:       r.Max,
		Quantity:  r.Quantity,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type RedisAdapter struct {
	client   *redis.Client
	lockTTL  time.Duration
	lockWait time.Duration
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, lockTTL: defaultLockTTL, lockWait: defaultLockWait}
}

// WithLockTiming sets how long a record lock lives and how long Atomically waits to get it.
func (r *RedisAdapter) WithLockTiming(ttl, wait time.Duration) *RedisAdapter {
	if ttl > 0 {
		r.lockTTL = ttl
	}
	if wait > 0 {
		r.lockWait = wait
	}
	return r
}

func (r *RedisAdapter) FindByName(ctx context.Context, name string) (*domain.Beer, error) {
	id, err := r.client.Get(ctx, beerNameKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get beer name index: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *RedisAdapter) FindByID(ctx context.Context, id string) (*domain.Beer, error) {
	raw, err := r.client.Get(ctx, beerKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get beer: %w", err)
	}

	var stored redisBeer
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode beer %s: %w", id, err)
	}
	beer := stored.toDomain()
	return &beer, nil
}

func (r *RedisAdapter) FindAll(ctx context.Context) ([]domain.Beer, error) {
	ids, err := r.client.SMembers(ctx, beerSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list beer ids: %w", err)
	}

	beers := []domain.Beer{}
	if len(ids) == 0 {
		return beers, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = beerKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get beers: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		var stored redisBeer
		if err := json.Unmarshal([]byte(s), &stored); err != nil {
			return nil, fmt.Errorf("decode beer %s: %w", ids[i], err)
		}
		beers = append(beers, stored.toDomain())
	}

	sort.Slice(beers, func(i, j int) bool {
		if beers[i].CreatedAt.Equal(beers[j].CreatedAt) {
			return beers[i].ID < beers[j].ID
		}
		return beers[i].CreatedAt.Before(beers[j].CreatedAt)
	})
	return beers, nil
}

func (r *RedisAdapter) Insert(ctx context.Context, beer domain.Beer) (*domain.Beer, error) {
	now := time.Now().UTC()
	beer.ID = uuid.NewString()
	beer.Version = 0
	beer.CreatedAt = now
	beer.UpdatedAt = now

	payload, err := json.Marshal(toRedisBeer(beer))
	if err != nil {
		return nil, fmt.Errorf("encode beer: %w", err)
	}

	keys := []string{beerNameKeyPrefix + beer.Name, beerKeyPrefix + beer.ID, beerSetKey}
	result, err := insertBeerScript.Run(ctx, r.client, keys, beer.ID, payload).Int()
	if err != nil {
		return nil, fmt.Errorf("insert beer: %w", err)
	}
	if result == 0 {
		return nil, port.ErrDuplicateName
	}
	return &beer, nil
}

func (r *RedisAdapter) Save(ctx context.Context, beer domain.Beer) (*domain.Beer, error) {
	expected := beer.Version
	beer.Version++
	beer.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(toRedisBeer(beer))
	if err != nil {
		return nil, fmt.Errorf("encode beer: %w", err)
	}

	// The previous name key must be declared up front, so read the stored record first.
	// A change in between fails the script's version check.
	current, err := r.FindByID(ctx, beer.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, port.ErrOptimisticLock
	}

	keys := []string{beerKeyPrefix + beer.ID, beerNameKeyPrefix + beer.Name, beerNameKeyPrefix + current.Name}
	result, err := saveBeerScript.Run(ctx, r.client, keys, beer.ID, expected, payload, current.Name).Int()
	if err != nil {
		return nil, fmt.Errorf("save beer: %w", err)
	}
	switch result {
	case 1:
		return &beer, nil
	case -1:
		return nil, port.ErrDuplicateName
	default:
		return nil, port.ErrOptimisticLock
	}
}

func (r *RedisAdapter) Delete(ctx context.Context, beer domain.Beer) error {
	keys := []string{beerKeyPrefix + beer.ID, beerSetKey, beerNameKeyPrefix + beer.Name}
	result, err := deleteBeerScript.Run(ctx, r.client, keys, beer.ID, beer.Version, beer.Name).Int()
	if err != nil {
		return fmt.Errorf("delete beer: %w", err)
	}
	if result == 0 {
		return port.ErrOptimisticLock
	}
	return nil
}

// Atomically holds a lease lock on the record for the duration of fn. Writes inside fn are
// still version-checked, so a lease that expires mid-way cannot produce a lost update.
func (r *RedisAdapter) Atomically(ctx context.Context, id string, fn func(ctx context.Context, repo port.BeerRepository) error) error {
	key := beerLockKeyPrefix + id
	token := uuid.NewString()

	if err := r.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// release even when ctx is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		releaseLockScript.Run(releaseCtx, r.client, []string{key}, token)
	}()

	return fn(ctx, lockedRedis{r})
}

func (r *RedisAdapter) acquire(ctx context.Context, key, token string) error {
	deadline := time.NewTimer(r.lockWait)
	defer deadline.Stop()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%s: %w", key, port.ErrLockTimeout)
		case <-ticker.C:
		}
	}
}

type lockedRedis struct {
	*RedisAdapter
}

func (l lockedRedis) Atomically(ctx context.Context, id string, fn func(ctx context.Context, repo port.BeerRepository) error) error {
	return fn(ctx, l)
}

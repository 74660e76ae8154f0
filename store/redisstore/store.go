package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/statelessauth"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces keys when Options.Prefix is empty.
const DefaultPrefix = "sa:"

const maxWatchRetries = 8

// KEYS[1] email index, KEYS[2] id counter
// ARGV[1] record key prefix, ARGV[2] encoded record
// Returns 0 when the email is taken, otherwise the new id.
const createPrincipalScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local id = redis.call("INCR", KEYS[2])
redis.call("SET", ARGV[1] .. id, ARGV[2])
redis.call("SET", KEYS[1], id)
return id
`

var createPrincipalLua = redis.NewScript(createPrincipalScript)

// KEYS[1] email index, ARGV[1] record key prefix
const findByEmailScript = `
local id = redis.call("GET", KEYS[1])
if not id then
  return false
end
local data = redis.call("GET", ARGV[1] .. id)
if not data then
  return false
end
return {id, data}
`

var findByEmailLua = redis.NewScript(findByEmailScript)

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key. On Redis Cluster use a hash tag such as
	// "{sa}:" so the scripts touch a single slot.
	Prefix string
}

// Store implements statelessauth.PrincipalStore and
// statelessauth.PasswordHashUpdater on Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New returns a Store over client.
func New(client redis.UniversalClient, opts Options) *Store {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) recordPrefix() string {
	return s.prefix + "p:"
}

func (s *Store) recordKey(id int64) string {
	return s.recordPrefix() + strconv.FormatInt(id, 10)
}

func (s *Store) emailKey(email string) string {
	return s.prefix + "e:" + normalize(email)
}

func (s *Store) seqKey() string {
	return s.prefix + "seq"
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail implements statelessauth.CredentialStore.
//
//	Performance: 1 EVALSHA.
func (s *Store) FindByEmail(ctx context.Context, email string) (statelessauth.Principal, error) {
	res, err := findByEmailLua.Run(ctx, s.redis, []string{s.emailKey(email)}, s.recordPrefix()).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return statelessauth.Principal{}, statelessauth.ErrPrincipalNotFound
		}
		return statelessauth.Principal{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return statelessauth.Principal{}, fmt.Errorf("%w: unexpected script reply", ErrCorruptRecord)
	}

	idStr, _ := res[0].(string)
	data, _ := res[1].(string)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return statelessauth.Principal{}, fmt.Errorf("%w: bad id %q", ErrCorruptRecord, idStr)
	}

	p, err := Decode([]byte(data))
	if err != nil {
		return statelessauth.Principal{}, err
	}
	p.ID = id
	return p, nil
}

// ExistsByEmail implements statelessauth.CredentialStore.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// CreatePrincipal implements statelessauth.PrincipalWriter. The email
// index and the record are written by one script.
func (s *Store) CreatePrincipal(ctx context.Context, np statelessauth.NewPrincipal) (statelessauth.Principal, error) {
	if !np.Role.Valid() {
		return statelessauth.Principal{}, fmt.Errorf("%w: role %s", statelessauth.ErrInvalidInput, np.Role)
	}

	p := statelessauth.Principal{
		Email:        normalize(np.Email),
		PasswordHash: np.PasswordHash,
		Role:         np.Role,
		Active:       np.Active,
		FirstName:    np.FirstName,
		LastName:     np.LastName,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	data, err := Encode(p)
	if err != nil {
		return statelessauth.Principal{}, fmt.Errorf("%w: %v", statelessauth.ErrInvalidInput, err)
	}

	id, err := createPrincipalLua.Run(ctx, s.redis,
		[]string{s.emailKey(p.Email), s.seqKey()},
		s.recordPrefix(), data,
	).Int64()
	if err != nil {
		return statelessauth.Principal{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if id == 0 {
		return statelessauth.Principal{}, statelessauth.ErrResourceAlreadyExists
	}

	p.ID = id
	return p, nil
}

// UpdatePasswordHash implements statelessauth.PasswordHashUpdater.
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return s.update(ctx, id, func(p *statelessauth.Principal) {
		p.PasswordHash = passwordHash
	})
}

// SetActive enables or disables the principal with email.
func (s *Store) SetActive(ctx context.Context, email string, active bool) error {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return statelessauth.ErrPrincipalNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.update(ctx, id, func(p *statelessauth.Principal) {
		p.Active = active
	})
}

// update applies fn to record id under WATCH, retrying on concurrent writes.
func (s *Store) update(ctx context.Context, id int64, fn func(*statelessauth.Principal)) error {
	key := s.recordKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return statelessauth.ErrPrincipalNotFound
			}
			return err
		}
		p, err := Decode(data)
		if err != nil {
			return err
		}
		fn(&p)
		out, err := Encode(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, statelessauth.ErrPrincipalNotFound), errors.Is(err, ErrCorruptRecord):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return fmt.Errorf("%w: update of principal %d kept conflicting", ErrRedisUnavailable, id)
}

var (
	_ statelessauth.PrincipalStore      = (*Store)(nil)
	_ statelessauth.PasswordHashUpdater = (*Store)(nil)
)

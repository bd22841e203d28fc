// internal/room/redis.go
//
// Redis implementation of the Store interface, for rooms whose two players are
// served by different processes.
//
// Layout:
//   - Each room is a hash at <prefix><id>.
//   - Every committed write publishes on <prefix><id>:events.
//   - Create/Update/UpdateIf run as one Lua script, so conditions and changes
//     apply atomically on the server.

package room

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultKeyPrefix namespaces room hashes.
const DefaultKeyPrefix = "duel:room:"

// writeScript returns -2 when creating an existing room, -1 when updating a
// missing room, 0 when a condition failed and 1 when the write applied.
var writeScript = redis.NewScript(`
local key, channel = KEYS[1], KEYS[2]
local exists = redis.call('EXISTS', key) == 1
if ARGV[1] == 'create' then
  if exists then return -2 end
elseif not exists then
  return -1
end

local i = 2
local nconds = tonumber(ARGV[i]); i = i + 1
for _ = 1, nconds do
  local kind, field, want = ARGV[i], ARGV[i + 1], ARGV[i + 2]
  i = i + 3
  local cur = redis.call('HGET', key, field)
  if kind == 'eq' and cur ~= want then return 0 end
  if kind == 'ne' and cur == want then return 0 end
  if kind == 'absent' and cur then return 0 end
end

local nops = tonumber(ARGV[i]); i = i + 1
for _ = 1, nops do
  local kind, field, val = ARGV[i], ARGV[i + 1], ARGV[i + 2]
  i = i + 3
  if kind == 'set' then
    redis.call('HSET', key, field, val)
  elseif kind == 'del' then
    redis.call('HDEL', key, field)
  elseif kind == 'incr' then
    redis.call('HINCRBY', key, field, val)
  elseif kind == 'append' then
    local cur = redis.call('HGET', key, field)
    if cur and cur ~= '' then val = cur .. '|' .. val end
    redis.call('HSET', key, field, val)
  end
end

redis.call('PUBLISH', channel, ARGV[1])
return 1
`)

type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(rdb *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &redisStore{rdb: rdb, prefix: prefix}
}

// DialRedis connects and pings. Unlike a cache, the room store cannot fail
// open, so a failed ping is returned to the caller.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *redisStore) key(id string) string     { return s.prefix + id }
func (s *redisStore) channel(id string) string { return s.prefix + id + ":events" }

func (s *redisStore) Create(ctx context.Context, id string, ch Changes) error {
	res, err := s.run(ctx, "create", id, nil, ch)
	if err != nil {
		return err
	}
	if res == -2 {
		return ErrExists
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (Doc, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return Doc(m), nil
}

func (s *redisStore) Update(ctx context.Context, id string, ch Changes) error {
	_, err := s.UpdateIf(ctx, id, nil, ch)
	return err
}

func (s *redisStore) UpdateIf(ctx context.Context, id string, conds []Cond, ch Changes) (bool, error) {
	res, err := s.run(ctx, "update", id, conds, ch)
	if err != nil {
		return false, err
	}
	switch res {
	case -1:
		return false, ErrNotFound
	case 1:
		return true, nil
	}
	return false, nil
}

func (s *redisStore) run(ctx context.Context, mode, id string, conds []Cond, ch Changes) (int64, error) {
	args := make([]interface{}, 0, 3+3*(len(conds)+len(ch)))
	args = append(args, mode, len(conds))
	for _, c := range conds {
		args = append(args, c.kind.lua(), c.Field, c.value)
	}
	args = append(args, len(ch))
	for f, c := range ch {
		switch c.kind {
		case opSet:
			args = append(args, "set", f, c.value)
		case opDelete:
			args = append(args, "del", f, "")
		case opIncr:
			args = append(args, "incr", f, strconv.FormatInt(c.delta, 10))
		case opAppend:
			args = append(args, "append", f, strings.Join(c.values, listSep))
		}
	}
	res, err := writeScript.Run(ctx, s.rdb, []string{s.key(id), s.channel(id)}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("room %s %s: %w", mode, id, err)
	}
	return res, nil
}

func (k condKind) lua() string {
	switch k {
	case condEquals:
		return "eq"
	case condNotEquals:
		return "ne"
	}
	return "absent"
}

// Subscribe listens on the room channel and re-reads the hash per message.
func (s *redisStore) Subscribe(ctx context.Context, id string) (<-chan Doc, error) {
	ps := s.rdb.Subscribe(ctx, s.channel(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}

	out := make(chan Doc, 1)
	push := func(d Doc) {
		select {
		case out <- d:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
		out <- d
	}

	go func() {
		defer close(out)
		defer ps.Close()

		if d, err := s.Get(ctx, id); err == nil {
			push(d)
		}
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				d, err := s.Get(ctx, id)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						log.Debug().Err(err).Str("room", id).Msg("refresh after notification")
					}
					continue
				}
				push(d)
			}
		}
	}()
	return out, nil
}

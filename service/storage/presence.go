package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	redisSrv "BPortal/service/storage/redis"
)

var ctx = context.Background()

// presence key: portal:presence:<user>
// Value is the presence status (online/away); TTL bounds its validity so a
// crashed client decays to offline without any explicit write.
func presenceKey(user string) string { return "portal:presence:" + user }

func PresenceSet(user, status string, ttl time.Duration) error {
	rdb := redisSrv.Client()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(user), status, ttl).Err()
}

// PresenceClear actively marks the user offline by deleting the key.
func PresenceClear(user string) error {
	rdb := redisSrv.Client()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup returns the cached status, or "" when the key has expired.
func PresenceLookup(user string) (status string, online bool, err error) {
	rdb := redisSrv.Client()
	if rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

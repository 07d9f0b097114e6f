package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/go-redis/redis/v8"
	redisgo "github.com/gomodule/redigo/redis"
	"github.com/nitishm/go-rejson/v4"
	"github.com/nitishm/go-rejson/v4/rjs"

	"finco/txcoordinator/common"
	"finco/txcoordinator/coordinator"
	"finco/txcoordinator/errors"
)

// Application Constants
const (
	RedisDbPrefix    = "txcoordinator:"
	RedisStoragePath = "."
)

// DB Keys
const (
	IdempotencyDBKey = RedisDbPrefix + "idempotency:"
)

// RedisClient connects to the redis database and returns the redis client
// plus the redis json handler.
func RedisClient() (*redis.Client, *rejson.Handler) {
	env := common.ENV()
	if env.RedisHost == "" {
		log.Error("Error Reading Redis Host")
	}
	if env.RedisPort == "" {
		log.Error("Error Reading Redis Port")
	}

	redisAddr := fmt.Sprintf("%s:%s", env.RedisHost, env.RedisPort)
	redisJson := rejson.NewReJSONHandler()
	op := &redis.Options{Addr: redisAddr, Password: "", WriteTimeout: 5 * time.Second}
	redisClient := redis.NewClient(op)

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Error(errors.BuildErrMsg(errors.RedisConnectionError, err))
	}
	redisJson.SetGoRedisClient(redisClient)
	return redisClient, redisJson
}

// RedisIdempotencyStore implements coordinator.IdempotencyStore on RedisJSON.
// The claim is JSON.SET ... NX, a single atomic round trip; EXPIRE bounds the
// replay-protection window.
type RedisIdempotencyStore struct {
	Client *redis.Client
	JSON   *rejson.Handler
}

func NewRedisIdempotencyStore() *RedisIdempotencyStore {
	client, handler := RedisClient()
	return &RedisIdempotencyStore{Client: client, JSON: handler}
}

func recordKey(callerID, key string) string {
	return IdempotencyDBKey + callerID + ":" + key
}

func (s *RedisIdempotencyStore) PutNX(ctx context.Context, rec *common.IdempotencyRecord, ttl time.Duration) (bool, error) {
	k := recordKey(rec.CallerID, rec.Key)
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, errors.BuildErrMsg(errors.MarshallError, err)
	}

	// MULTI/EXEC: the claim and its TTL land in one round trip, so no crash
	// window can leave an in_progress record that never expires. On a lost
	// claim the EXPIRE re-bounds the existing record, which also heals a
	// record that somehow lost its TTL.
	pipe := s.Client.TxPipeline()
	setCmd := pipe.Do(ctx, "JSON.SET", k, RedisStoragePath, string(payload), "NX")
	expireCmd := pipe.Expire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, errors.BuildAndLogErrorMsg(errors.WriteRecordError, err)
	}

	if setCmd.Err() == redis.Nil {
		return false, nil
	}
	if setCmd.Err() != nil {
		return false, errors.BuildAndLogErrorMsg(errors.WriteRecordError, setCmd.Err())
	}
	if err := expireCmd.Err(); err != nil {
		// a claim that cannot expire must not be handed out
		s.Client.Del(ctx, k)
		return false, errors.BuildAndLogErrorMsg(errors.WriteRecordError, err)
	}
	return true, nil
}

func (s *RedisIdempotencyStore) GetRecord(ctx context.Context, callerID, key string) (*common.IdempotencyRecord, error) {
	res, err := s.JSON.JSONGet(recordKey(callerID, key), RedisStoragePath)
	if err != nil {
		if err == redis.Nil {
			return nil, coordinator.ErrNoRecord
		}
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}

	resBytes, err := redisgo.Bytes(res, nil)
	if err != nil {
		return nil, errors.BuildAndLogErrorMsg(errors.ReadRecordError, err)
	}

	var rec common.IdempotencyRecord
	if err := json.Unmarshal(resBytes, &rec); err != nil {
		return nil, errors.BuildAndLogErrorMsg(errors.UnmarshallError, err)
	}
	return &rec, nil
}

func (s *RedisIdempotencyStore) UpdateRecord(ctx context.Context, rec *common.IdempotencyRecord) error {
	// XX keeps the original TTL: completing a record never extends the
	// replay window
	res, err := s.JSON.JSONSet(recordKey(rec.CallerID, rec.Key), RedisStoragePath, rec, rjs.SetOptionXX)
	if err != nil && err != redis.Nil {
		return errors.BuildAndLogErrorMsg(errors.UpdateRecordError, err)
	}
	if res == nil || err == redis.Nil {
		return coordinator.ErrNoRecord
	}
	return nil
}

func (s *RedisIdempotencyStore) DeleteRecord(ctx context.Context, callerID, key string) error {
	if err := s.Client.Del(ctx, recordKey(callerID, key)).Err(); err != nil {
		return errors.BuildAndLogErrorMsg(errors.WriteRecordError, err)
	}
	return nil
}

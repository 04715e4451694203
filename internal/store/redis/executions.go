// Package redis backs the behavioral execution log and event de-duplication
// with Redis.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/triggers"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
)

// tryRecordScript checks the lifetime cap and the cooldown window and, when
// both pass, records the execution. Returns 0 allowed, 1 max executions,
// 2 cooldown.
//
// KEYS[1] execution sorted set
// ARGV[1] execution time (ms), ARGV[2] set member, ARGV[3] max executions
// (-1 for none), ARGV[4] cooldown (ms, 0 for none)
var tryRecordScript = goredis.NewScript(`
local max = tonumber(ARGV[3])
if max >= 0 then
  if redis.call("ZCARD", KEYS[1]) >= max then
    return 1
  end
end
local cooldown = tonumber(ARGV[4])
if cooldown > 0 then
  local since = tonumber(ARGV[1]) - cooldown
  if redis.call("ZCOUNT", KEYS[1], since, "+inf") > 0 then
    return 2
  end
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
return 0
`)

// ExecutionLog keeps one sorted set per member and event, scored by
// execution time in milliseconds. It implements triggers.AtomicExecutionLog.
type ExecutionLog struct {
	client goredis.UniversalClient
	key    func(parts ...string) string
}

func NewExecutionLog(rc *database.RedisClient) *ExecutionLog {
	return &ExecutionLog{client: rc.GetClient(), key: rc.Key}
}

func (l *ExecutionLog) logKey(memberID, event string) string {
	return l.key("exec", memberID, event)
}

func (l *ExecutionLog) RecordExecution(ctx context.Context, memberID, event string, at time.Time) error {
	err := l.client.ZAdd(ctx, l.logKey(memberID, event), goredis.Z{
		Score:  float64(at.UnixMilli()),
		Member: entryID(at),
	}).Err()
	if err != nil {
		return errors.NewExecutionLogError(err)
	}
	return nil
}

// CountRecentExecutions counts executions at or after since. A zero since
// counts every execution.
func (l *ExecutionLog) CountRecentExecutions(ctx context.Context, memberID, event string, since time.Time) (int, error) {
	lower := "-inf"
	if !since.IsZero() {
		lower = strconv.FormatInt(since.UnixMilli(), 10)
	}
	n, err := l.client.ZCount(ctx, l.logKey(memberID, event), lower, "+inf").Result()
	if err != nil {
		return 0, errors.NewExecutionLogError(err)
	}
	return int(n), nil
}

func (l *ExecutionLog) TryRecordExecution(ctx context.Context, memberID, event string, at time.Time, limits triggers.Limits) (triggers.Decision, error) {
	maxRuns := -1
	if limits.HasMaxExecutions {
		maxRuns = limits.MaxExecutions
	}
	code, err := tryRecordScript.Run(ctx, l.client,
		[]string{l.logKey(memberID, event)},
		at.UnixMilli(), entryID(at), maxRuns, limits.Cooldown.Milliseconds(),
	).Int()
	if err != nil {
		return triggers.Decision{}, errors.NewExecutionLogError(err)
	}

	switch code {
	case 0:
		return triggers.Decision{Allowed: true, Recorded: true}, nil
	case 1:
		return triggers.Decision{Reason: triggers.DenyMaxExecutions}, nil
	case 2:
		return triggers.Decision{Reason: triggers.DenyCooldown}, nil
	default:
		return triggers.Decision{}, errors.NewExecutionLogError(fmt.Errorf("unexpected limit script result %d", code))
	}
}

func entryID(at time.Time) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + ":" + uuid.NewString()
}

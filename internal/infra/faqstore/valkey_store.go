package faqstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

// recordQueryScript folds one question into the per-query hash, the trending zset and the
// last-seen index atomically.
var recordQueryScript = valkey.NewLuaScript(`
redis.call('HINCRBY', KEYS[1], 'asked', 1)
if ARGV[3] == '1' then redis.call('HINCRBY', KEYS[1], 'answered', 1) end
redis.call('HSETNX', KEYS[1], 'display', ARGV[2])
local at = tonumber(ARGV[5])
local first = redis.call('HGET', KEYS[1], 'first_seen')
if (not first) or at < tonumber(first) then redis.call('HSET', KEYS[1], 'first_seen', ARGV[5]) end
local last = redis.call('HGET', KEYS[1], 'last_seen')
if (not last) or at > tonumber(last) then
  redis.call('HSET', KEYS[1], 'last_seen', ARGV[5])
  redis.call('ZADD', KEYS[3], at, ARGV[1])
end
local best = redis.call('HGET', KEYS[1], 'best_confidence')
if (not best) or tonumber(ARGV[4]) > tonumber(best) then redis.call('HSET', KEYS[1], 'best_confidence', ARGV[4]) end
redis.call('ZINCRBY', KEYS[2], 1, ARGV[1])
return 1
`)

// ValkeyStore keeps the answer cache and query log in a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "faq"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// GetAnswer implements faq.Store.
func (s *ValkeyStore) GetAnswer(ctx context.Context, key string) (faq.AnswerRecord, bool, error) {
	if key == "" {
		return faq.AnswerRecord{}, false, nil
	}
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.answerKey(key)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return faq.AnswerRecord{}, false, nil
		}
		return faq.AnswerRecord{}, false, err
	}
	var record faq.AnswerRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return faq.AnswerRecord{}, false, err
	}
	return record, true, nil
}

// SaveAnswer implements faq.Store.
func (s *ValkeyStore) SaveAnswer(ctx context.Context, record faq.AnswerRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.answerKey(record.Key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// DeleteAnswer implements faq.Store.
func (s *ValkeyStore) DeleteAnswer(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Do(ctx, s.client.B().Del().Key(s.answerKey(key)).Build()).Error()
}

// RecordQuery implements faq.Store.
func (s *ValkeyStore) RecordQuery(ctx context.Context, ev faq.QueryEvent) error {
	if ev.Canonical == "" {
		return nil
	}
	answered := "0"
	if ev.Answered {
		answered = "1"
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	keys := []string{s.statKey(ev.Canonical), s.trendingKey(), s.lastSeenKey()}
	args := []string{
		ev.Canonical,
		ev.Display,
		answered,
		strconv.FormatFloat(ev.Confidence, 'f', -1, 64),
		strconv.FormatInt(at.UnixMilli(), 10),
	}
	return recordQueryScript.Exec(ctx, s.client, keys, args).Error()
}

// TopQueries implements faq.Store.
func (s *ValkeyStore) TopQueries(ctx context.Context, limit int) ([]faq.TrendingQuery, error) {
	if limit <= 0 {
		limit = 10
	}
	resp := s.client.Do(ctx, s.client.B().Zrevrange().Key(s.trendingKey()).Start(0).Stop(int64(limit-1)).Withscores().Build())
	arr, err := resp.ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]faq.TrendingQuery, 0, len(arr))
	for i := 0; i < len(arr); {
		var (
			member string
			score  float64
		)
		if tuple, tupleErr := arr[i].ToArray(); tupleErr == nil && len(tuple) == 2 {
			// RESP3 returns [member, score] per element
			if member, err = tuple[0].ToString(); err != nil {
				return nil, err
			}
			if score, err = tuple[1].ToFloat64(); err != nil {
				return nil, err
			}
			i++
		} else {
			// RESP2 returns a flat alternating array.
			if i+1 >= len(arr) {
				break
			}
			if member, err = arr[i].ToString(); err != nil {
				return nil, err
			}
			if score, err = arr[i+1].ToFloat64(); err != nil {
				return nil, err
			}
			i += 2
		}
		out = append(out, faq.TrendingQuery{Query: s.display(ctx, member), Count: int64(score)})
	}
	return out, nil
}

// QueryStats implements faq.Store.
func (s *ValkeyStore) QueryStats(ctx context.Context, since time.Time) ([]faq.QueryStat, error) {
	min := "-inf"
	if !since.IsZero() {
		min = strconv.FormatInt(since.UnixMilli(), 10)
	}
	members, err := s.client.Do(ctx, s.client.B().Zrangebyscore().Key(s.lastSeenKey()).Min(min).Max("+inf").Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(members) == 0 {
		return []faq.QueryStat{}, nil
	}
	cmds := make(valkey.Commands, 0, len(members))
	for _, member := range members {
		cmds = append(cmds, s.client.B().Hgetall().Key(s.statKey(member)).Build())
	}
	out := make([]faq.QueryStat, 0, len(members))
	for i, result := range s.client.DoMulti(ctx, cmds...) {
		fields, err := result.AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("load query stat %q: %w", members[i], err)
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, statFromHash(members[i], fields))
	}
	sortStats(out)
	return out, nil
}

func statFromHash(canonical string, fields map[string]string) faq.QueryStat {
	asked, _ := strconv.ParseInt(fields["asked"], 10, 64)
	answered, _ := strconv.ParseInt(fields["answered"], 10, 64)
	best, _ := strconv.ParseFloat(fields["best_confidence"], 64)
	first, _ := strconv.ParseInt(fields["first_seen"], 10, 64)
	last, _ := strconv.ParseInt(fields["last_seen"], 10, 64)
	display := fields["display"]
	if display == "" {
		display = canonical
	}
	return faq.QueryStat{
		Canonical:      canonical,
		Display:        display,
		AskedCount:     asked,
		AnsweredCount:  answered,
		BestConfidence: best,
		FirstSeen:      time.UnixMilli(first).UTC(),
		LastSeen:       time.UnixMilli(last).UTC(),
	}
}

func (s *ValkeyStore) display(ctx context.Context, canonical string) string {
	display, err := s.client.Do(ctx, s.client.B().Hget().Key(s.statKey(canonical)).Field("display").Build()).ToString()
	if err != nil || display == "" {
		return canonical
	}
	return display
}

func (s *ValkeyStore) answerKey(key string) string {
	return fmt.Sprintf("%s:answer:%s", s.prefix, key)
}

func (s *ValkeyStore) statKey(canonical string) string {
	return fmt.Sprintf("%s:query:%s", s.prefix, canonical)
}

func (s *ValkeyStore) trendingKey() string {
	return fmt.Sprintf("%s:trending", s.prefix)
}

func (s *ValkeyStore) lastSeenKey() string {
	return fmt.Sprintf("%s:queries:last_seen", s.prefix)
}

var _ faq.Store = (*ValkeyStore)(nil)

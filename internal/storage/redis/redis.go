package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/storage"
)

const (
	publicIndexKey = "links:public"
	metricsPrefix  = "monitor:"
)

func linkKey(code string) string     { return "link:" + code }
func aliasKey(alias string) string   { return "alias:" + alias }
func clicksKey(code string) string   { return "clicks:" + code }
func countersKey(code string) string { return "counters:" + code }
func updatedKey(code string) string  { return "counters:" + code + ":updated" }
func historyKey(code string) string  { return "insights:" + code }
func metricsKey(kind monitor.Kind) string {
	return metricsPrefix + string(kind)
}

// insertLink claims the code and the optional alias in one atomic step.
// A value counts as claimed if it exists as either a code or an alias.
// Returns 1 when the code is taken, 2 when the alias is taken, 0 on success.
var insertLink = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
	return 1
end
if ARGV[1] ~= '' then
	if redis.call('EXISTS', KEYS[3]) == 1 or redis.call('EXISTS', KEYS[4]) == 1 then
		return 2
	end
	redis.call('SET', KEYS[3], ARGV[2])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 5))
if ARGV[3] == 'PUBLIC' then
	redis.call('ZADD', KEYS[5], ARGV[4], ARGV[2])
end
return 0
`)

// incrementIfExists adds ARGV[2] to field ARGV[1] only on an existing hash.
var incrementIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// setIfExists writes field/value pairs only on an existing hash.
var setIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 0
`)

type Storage struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Storage, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func (s *Storage) InsertLink(ctx context.Context, rec link.Record) error {
	const op = "storage.redis.InsertLink"

	keys := []string{
		linkKey(rec.Code),
		aliasKey(rec.Code),
		aliasKey(rec.Alias),
		linkKey(rec.Alias),
		publicIndexKey,
	}

	args := []any{
		rec.Alias,
		rec.Code,
		string(rec.Visibility),
		rec.CreatedAt.UnixMilli(),
		"code", rec.Code,
		"url", rec.DestinationURL,
		"alias", rec.Alias,
		"visibility", string(rec.Visibility),
		"title", rec.Title,
		"clicks", rec.ClickCount,
		"created_at", rec.CreatedAt.UnixMilli(),
	}

	res, err := insertLink.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch res {
	case 1:
		return fmt.Errorf("%s: %w", op, storage.ErrCodeExists)
	case 2:
		return fmt.Errorf("%s: %w", op, storage.ErrAliasExists)
	}

	return nil
}

func (s *Storage) LinkByCode(ctx context.Context, code string) (link.Record, error) {
	const op = "storage.redis.LinkByCode"

	fields, err := s.client.HGetAll(ctx, linkKey(code)).Result()
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return decodeLink(fields), nil
}

func (s *Storage) LinkByAlias(ctx context.Context, alias string) (link.Record, error) {
	const op = "storage.redis.LinkByAlias"

	code, err := s.client.Get(ctx, aliasKey(alias)).Result()
	if errors.Is(err, redis.Nil) {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := s.LinkByCode(ctx, code)
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func decodeLink(fields map[string]string) link.Record {
	clicks, _ := strconv.ParseInt(fields["clicks"], 10, 64)
	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)

	rec := link.Record{
		Code:           fields["code"],
		DestinationURL: fields["url"],
		Alias:          fields["alias"],
		Visibility:     link.Visibility(fields["visibility"]),
		Title:          fields["title"],
		ClickCount:     clicks,
		CreatedAt:      time.UnixMilli(createdAt).UTC(),
		CachedInsight:  fields["insight"],
	}

	if at, err := strconv.ParseInt(fields["insight_at"], 10, 64); err == nil {
		rec.InsightGeneratedAt = time.UnixMilli(at).UTC()
	}

	return rec
}

func (s *Storage) IncrementClicks(ctx context.Context, code string, delta int64) error {
	const op = "storage.redis.IncrementClicks"

	res, err := incrementIfExists.Run(ctx, s.client, []string{linkKey(code)}, "clicks", delta).Int64()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res < 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) SaveInsight(ctx context.Context, code, text string, generatedAt time.Time) error {
	const op = "storage.redis.SaveInsight"

	res, err := setIfExists.Run(ctx, s.client, []string{linkKey(code)},
		"insight", text, "insight_at", generatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res < 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) PublicLinks(ctx context.Context, limit, offset int) ([]link.Record, error) {
	const op = "storage.redis.PublicLinks"

	if limit <= 0 {
		return []link.Record{}, nil
	}

	codes, err := s.client.ZRevRange(ctx, publicIndexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(codes))
	for _, code := range codes {
		cmds = append(cmds, pipe.HGetAll(ctx, linkKey(code)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	recs := make([]link.Record, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		recs = append(recs, decodeLink(fields))
	}

	return recs, nil
}

func (s *Storage) AppendClick(ctx context.Context, e click.Event) error {
	const op = "storage.redis.AppendClick"

	member, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.client.ZAdd(ctx, clicksKey(e.Code), redis.Z{
		Score:  float64(e.Timestamp.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ClicksSince(ctx context.Context, code string, since time.Time) ([]click.Event, error) {
	const op = "storage.redis.ClicksSince"

	members, err := s.client.ZRangeByScore(ctx, clicksKey(code), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events := make([]click.Event, 0, len(members))
	for _, m := range members {
		var e click.Event
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, e)
	}

	return events, nil
}

func counterField(category click.Category, value string) string {
	return string(category) + "|" + value
}

func (s *Storage) IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error {
	const op = "storage.redis.IncrementCategory"

	field := counterField(category, value)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, countersKey(code), field, delta)
		pipe.HSet(ctx, updatedKey(code), field, at.UnixMilli())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Categories(ctx context.Context, code string) ([]click.Counter, error) {
	const op = "storage.redis.Categories"

	counts, err := s.client.HGetAll(ctx, countersKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.client.HGetAll(ctx, updatedKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	counters := make([]click.Counter, 0, len(counts))
	for field, raw := range counts {
		category, value, ok := strings.Cut(field, "|")
		if !ok {
			continue
		}

		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		c := click.Counter{
			Code:     code,
			Category: click.Category(category),
			Value:    value,
			Count:    n,
		}
		if ms, err := strconv.ParseInt(updated[field], 10, 64); err == nil {
			c.LastUpdated = time.UnixMilli(ms).UTC()
		}

		counters = append(counters, c)
	}

	return counters, nil
}

func (s *Storage) AppendInsightHistory(ctx context.Context, e insight.HistoryEntry) error {
	const op = "storage.redis.AppendInsightHistory"

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.RPush(ctx, historyKey(e.Code), b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) AppendMetric(ctx context.Context, m monitor.Metric) error {
	const op = "storage.redis.AppendMetric"

	member, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.client.ZAdd(ctx, metricsKey(m.Kind), redis.Z{
		Score:  float64(m.Timestamp.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) MetricsSince(ctx context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error) {
	const op = "storage.redis.MetricsSince"

	members, err := s.client.ZRangeByScore(ctx, metricsKey(kind), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics := make([]monitor.Metric, 0, len(members))
	for _, raw := range members {
		var m monitor.Metric
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		metrics = append(metrics, m)
	}

	return metrics, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

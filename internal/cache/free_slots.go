// Package cache keeps computed free-slot lists in Redis so repeated
// availability reads for the same doctor and day skip the database.
// The cache is never authoritative: a stale entry can only show a slot
// that the booking transaction will then refuse.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/config"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

// FreeSlots caches the free-slot list per (doctor, day) under
// "<prefix>:<doctor>:<YYYY-MM-DD>".  A nil *FreeSlots, a nil client or a
// disabled config all turn every method into a no-op miss.
//
// Every invalidation also bumps a version counter, per day under
// "<prefix>:ver:<doctor>:<YYYY-MM-DD>" and per doctor under
// "<prefix>:ver:<doctor>".  A reader takes a Stamp before it queries the
// database and Set only stores its list if neither counter moved since.
type FreeSlots struct {
	rdb *redis.Client
	cfg config.CacheConfig
}

// NewFreeSlots returns nil when caching cannot be used.
func NewFreeSlots(rdb *redis.Client, cfg config.CacheConfig) *FreeSlots {
	if rdb == nil || !cfg.Enabled {
		return nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "avail"
	}
	return &FreeSlots{rdb: rdb, cfg: cfg}
}

// versionTTL outlives any read that could still hold a stamp.
const versionTTL = 24 * time.Hour

// storeIfCurrent writes the entry only when both version counters still
// hold the values the reader saw.  A missing counter reads as "".
var storeIfCurrent = redis.NewScript(`
local day = redis.call('GET', KEYS[2]) or ''
local doc = redis.call('GET', KEYS[3]) or ''
if day ~= ARGV[1] or doc ~= ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[4])
return 1
`)

// Stamp is the pair of version counters observed before a database read.
type Stamp struct {
	day, doctor string
	ok          bool
}

func (c *FreeSlots) key(doctorID uint64, date time.Time) string {
	return fmt.Sprintf("%s:%d:%s", c.cfg.Prefix, doctorID, date.UTC().Format("2006-01-02"))
}

func (c *FreeSlots) dayVersionKey(doctorID uint64, date time.Time) string {
	return fmt.Sprintf("%s:ver:%d:%s", c.cfg.Prefix, doctorID, date.UTC().Format("2006-01-02"))
}

func (c *FreeSlots) doctorVersionKey(doctorID uint64) string {
	return fmt.Sprintf("%s:ver:%d", c.cfg.Prefix, doctorID)
}

// Stamp reads the current version counters.  Call it before loading the
// data that will be passed to Set.  When Redis fails the stamp is
// unusable and Set skips the write.
func (c *FreeSlots) Stamp(ctx context.Context, doctorID uint64, date time.Time) Stamp {
	if c == nil {
		return Stamp{}
	}
	vals, err := c.rdb.MGet(ctx, c.dayVersionKey(doctorID, date), c.doctorVersionKey(doctorID)).Result()
	if err != nil || len(vals) != 2 {
		return Stamp{}
	}
	str := func(v interface{}) string {
		s, _ := v.(string)
		return s
	}
	return Stamp{day: str(vals[0]), doctor: str(vals[1]), ok: true}
}

// Get returns the cached list and true on a hit.  Redis errors and
// undecodable entries are reported as misses.
func (c *FreeSlots) Get(ctx context.Context, doctorID uint64, date time.Time) ([]model.Slot, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key(doctorID, date)).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Set stores slots with the configured TTL unless the day or the doctor
// was invalidated after stamp was taken.  stored reports whether the
// entry was written.
func (c *FreeSlots) Set(ctx context.Context, doctorID uint64, date time.Time, stamp Stamp, slots []model.Slot) (stored bool, err error) {
	if c == nil || !stamp.ok {
		return false, nil
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return false, err
	}
	keys := []string{c.key(doctorID, date), c.dayVersionKey(doctorID, date), c.doctorVersionKey(doctorID)}
	n, err := storeIfCurrent.Run(ctx, c.rdb, keys, stamp.day, stamp.doctor, string(raw), c.cfg.TTL.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate drops the entry of one doctor and day.
func (c *FreeSlots) Invalidate(ctx context.Context, doctorID uint64, date time.Time) error {
	if c == nil {
		return nil
	}
	ver := c.dayVersionKey(doctorID, date)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, ver)
		p.Expire(ctx, ver, versionTTL)
		p.Del(ctx, c.key(doctorID, date))
		return nil
	})
	return err
}

// InvalidateDoctor drops every entry of the doctor.  Used after the
// weekly template is replaced, which can change any future day.
func (c *FreeSlots) InvalidateDoctor(ctx context.Context, doctorID uint64) error {
	if c == nil {
		return nil
	}
	ver := c.doctorVersionKey(doctorID)
	if _, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, ver)
		p.Expire(ctx, ver, versionTTL)
		return nil
	}); err != nil {
		return err
	}
	pattern := fmt.Sprintf("%s:%d:*", c.cfg.Prefix, doctorID)
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

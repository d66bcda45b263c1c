package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iabetor/govoicevox/internal/logger"
)

// CacheKey 描述一次合成请求。字段相同的请求得到相同的 WAV。
type CacheKey struct {
	Version string // 原生库版本
	StyleID uint32
	Text    string
	Kana    bool
	Options string // 影响输出的选项，如 "upspeak=1"
}

// Hash 返回缓存键的十六进制 SHA-256。
func (k CacheKey) Hash() string {
	h := sha256.New()
	for _, part := range []string{k.Version, strconv.FormatUint(uint64(k.StyleID), 10), strconv.FormatBool(k.Kana), k.Options, k.Text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SynthesisCache 是以 SQLite 存储的 WAV 缓存，按最近使用时间淘汰。
type SynthesisCache struct {
	db         *DB
	maxEntries int
	now        func() time.Time
}

// NewSynthesisCache 创建缓存。maxEntries <= 0 表示不限数量。
func NewSynthesisCache(db *DB, maxEntries int) (*SynthesisCache, error) {
	if err := db.Migrate(); err != nil {
		return nil, err
	}
	return &SynthesisCache{db: db, maxEntries: maxEntries, now: time.Now}, nil
}

// Get 查找缓存，命中时更新使用时间。
func (c *SynthesisCache) Get(key CacheKey) ([]byte, bool, error) {
	hash := key.Hash()
	var wav []byte
	err := c.db.QueryRow(`SELECT wav FROM synthesis_cache WHERE cache_key = ?`, hash).Scan(&wav)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("查询合成缓存失败: %w", err)
	}
	if _, err := c.db.Exec(`UPDATE synthesis_cache SET hits = hits + 1, last_used = ? WHERE cache_key = ?`,
		c.now().UnixNano(), hash); err != nil {
		logger.Warnf("[cache] 更新使用时间失败: %v", err)
	}
	return wav, true, nil
}

// Put 写入缓存并淘汰超出上限的旧条目。
func (c *SynthesisCache) Put(key CacheKey, wav []byte) error {
	ts := c.now().UnixNano()
	_, err := c.db.Exec(`INSERT INTO synthesis_cache (cache_key, style_id, text, wav, size, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET wav = excluded.wav, size = excluded.size, last_used = excluded.last_used`,
		key.Hash(), key.StyleID, key.Text, wav, len(wav), ts, ts)
	if err != nil {
		return fmt.Errorf("写入合成缓存失败: %w", err)
	}
	return c.prune()
}

func (c *SynthesisCache) prune() error {
	if c.maxEntries <= 0 {
		return nil
	}
	res, err := c.db.Exec(`DELETE FROM synthesis_cache WHERE cache_key IN (
		SELECT cache_key FROM synthesis_cache ORDER BY last_used DESC LIMIT -1 OFFSET ?)`, c.maxEntries)
	if err != nil {
		return fmt.Errorf("淘汰合成缓存失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Debugf("[cache] 淘汰 %d 条合成缓存", n)
	}
	return nil
}

// CacheStats 是缓存的统计信息。
type CacheStats struct {
	Entries int
	Bytes   int64
	Hits    int64
}

// Stats 返回缓存条目数、总字节数和命中次数。
func (c *SynthesisCache) Stats() (CacheStats, error) {
	var s CacheStats
	err := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(hits), 0) FROM synthesis_cache`).
		Scan(&s.Entries, &s.Bytes, &s.Hits)
	if err != nil {
		return s, fmt.Errorf("统计合成缓存失败: %w", err)
	}
	return s, nil
}

// Clear 删除所有缓存条目。
func (c *SynthesisCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM synthesis_cache`); err != nil {
		return fmt.Errorf("清空合成缓存失败: %w", err)
	}
	return nil
}

package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/iabetor/govoicevox/internal/logger"
)

// DB 是 SQLite 数据库连接。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。
// dbPath 为空时使用默认路径 ~/.govoicevox/cache.db；":memory:" 打开内存数据库。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			dbPath = filepath.Join(home, ".govoicevox", "cache.db")
		} else {
			dbPath = "./govoicevox.db"
		}
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if dbPath == ":memory:" {
		// 每个连接都是独立的内存库
		db.SetMaxOpenConns(1)
	}

	// 设置 WAL 模式（更好的并发性能）
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 busy_timeout 失败: %w", err)
	}

	logger.Debugf("[database] 数据库已打开: %s", dbPath)

	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		// 合成结果缓存
		`CREATE TABLE IF NOT EXISTS synthesis_cache (
			cache_key TEXT PRIMARY KEY,
			style_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			wav BLOB NOT NULL,
			size INTEGER NOT NULL,
			hits INTEGER DEFAULT 0,
			created_at INTEGER NOT NULL,
			last_used INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_synthesis_cache_last_used ON synthesis_cache(last_used)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	logger.Debugf("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
)

const (
	persistentStoreVar = "PERSISTENT_STORE"
	sqlitePathVar      = "SQLITE_PATH"
	redisAddrVar       = "REDIS_ADDR"
	redisNamespaceVar  = "REDIS_NAMESPACE"

	StoreSqlite = "sqlite"
	StoreRedis  = "redis"
)

type Storage struct {
	src *source
}

var _ StorageConfig = Storage{}

// GetPersistentStore selects the backend of the "remember me" area: "sqlite" or "redis".
func (s Storage) GetPersistentStore() string {
	return s.src.get(persistentStoreVar, StoreSqlite)
}

func (s Storage) GetSqlitePath() string {
	return s.src.get(sqlitePathVar, defaultSqlitePath())
}

func (s Storage) GetRedisAddr() string {
	return s.src.get(redisAddrVar, "localhost:6379")
}

func (s Storage) GetRedisNamespace() string {
	return s.src.get(redisNamespaceVar, "lms:credentials")
}

func defaultSqlitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "lms-session.db")
	}
	return filepath.Join(dir, "lms-session", "credentials.db")
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUBMIT_TIMEOUT_SECONDS", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 30*time.Minute, cfg.CatalogIdleTTL)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUBMIT_TIMEOUT_SECONDS", "3")
	t.Setenv("EXAM_CACHE_TTL_SECONDS", "nope")
	t.Setenv("ALLOWED_ORIGINS", " https://a.test , ,https://b.test")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("CATALOG_IDLE_SECONDS", "90")

	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ExamCacheTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 90*time.Second, cfg.CatalogIdleTTL)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "user:42:notices", CacheKey.UserNoticeChannel(42))
	assert.Equal(t, "classroom:abc:exams", CacheKey.ClassroomExamsKey("abc"))
	assert.Equal(t, "exam:e1:monitor", CacheKey.ExamMonitorChannel("e1"))
}

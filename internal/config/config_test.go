package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	t.Setenv("YTDLP_PATH", "")
	t.Setenv("YT_DLP_PATH", "")
	c := Default()
	assert.NoError(t, c.Validate())
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "yt-dlp", c.YtDlpPath)
	assert.Equal(t, 100, c.MaxFilenameLength)
	assert.Equal(t, float64(100), c.RequestsPerSecond)
	assert.Equal(t, 200, c.Burst)
}

func TestYtDlpPathFromEnv(t *testing.T) {
	t.Setenv("YTDLP_PATH", "")
	t.Setenv("YT_DLP_PATH", "/opt/bin/yt-dlp")
	assert.Equal(t, "/opt/bin/yt-dlp", YtDlpPathFromEnv())

	t.Setenv("YTDLP_PATH", "/usr/local/bin/yt-dlp")
	assert.Equal(t, "/usr/local/bin/yt-dlp", YtDlpPathFromEnv())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	c := Default()
	c.Addr = ""
	c.MaxFilenameLength = 0
	c.Burst = 0
	c.LogLevel = "loud"

	err := c.Validate()
	assert.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "4 errors occurred")
	assert.Contains(t, msg, "listen address is empty")
	assert.Contains(t, msg, "max filename length")
	assert.Contains(t, msg, "rate limit")
}

func TestValidate_RedisDisabled(t *testing.T) {
	c := Default()
	c.RedisEnabled = false
	c.RedisAddr = ""
	assert.NoError(t, c.Validate())
}

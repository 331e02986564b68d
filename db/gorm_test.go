package db

import (
	"testing"

	"Chroma/config"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNRoundTrip(t *testing.T) {
	cfg := &config.Config{
		DBUser:     "chroma",
		DBPassword: "p@ss:word",
		DBHost:     "db.local",
		DBPort:     "3307",
		DBName:     "chroma",
	}

	parsed, err := mysqldrv.ParseDSN(DSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "chroma", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db.local:3307", parsed.Addr)
	assert.Equal(t, "chroma", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

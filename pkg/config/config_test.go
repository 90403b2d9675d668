package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  host: localhost
  type: sqlite
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 50, cfg.Index.MaxChildren)
	assert.Equal(t, 20, cfg.Index.MinChildren)
	assert.Equal(t, 5, cfg.Search.WorkerCount)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
index:
  max_children: 100
  min_children: 40
database:
  type: postgres
  host: db.example.com
  port: 5432
  database: rtree_geo
  user: admin
  password: secret
search:
  worker_count: 8
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Index.MaxChildren)
	assert.Equal(t, 40, cfg.Index.MinChildren)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "rtree_geo", cfg.Database.Database)
	assert.Equal(t, 8, cfg.Search.WorkerCount)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: oracle
  host: localhost
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestValidate_MinChildrenTooLarge(t *testing.T) {
	cfg := &Config{
		Index:    IndexConfig{MaxChildren: 10, MinChildren: 9},
		Database: DatabaseConfig{Type: "sqlite"},
		Search:   SearchConfig{WorkerCount: 1},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_children")
}

func TestValidate_InvalidWorkerCount(t *testing.T) {
	cfg := &Config{
		Index:    IndexConfig{MaxChildren: 50, MinChildren: 20},
		Database: DatabaseConfig{Type: "postgres"},
		Search:   SearchConfig{WorkerCount: 0},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count must be at least 1")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}

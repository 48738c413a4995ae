package db

import (
	"testing"

	"github.com/shinyyama/instrument-market/internal/config"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	base := config.Config{DBUser: "u", DBPassword: "p", DBName: "market", DBPort: "3306"}

	tests := []struct {
		name string
		mod  func(c *config.Config)
		want string
	}{
		{"host and port", func(c *config.Config) { c.DBHost = "db.local" }, "u:p@tcp(db.local:3306)/market?charset=utf8mb4&parseTime=True&loc=Local"},
		{"explicit tcp", func(c *config.Config) { c.DBHost = "tcp(10.0.0.1:3307)" }, "u:p@tcp(10.0.0.1:3307)/market?charset=utf8mb4&parseTime=True&loc=Local"},
		{"socket path", func(c *config.Config) { c.DBHost = "/var/run/mysqld.sock" }, "u:p@unix(/var/run/mysqld.sock)/market?charset=utf8mb4&parseTime=True&loc=Local"},
		{"cloud sql", func(c *config.Config) { c.DBHost = "ignored"; c.InstanceConnectionName = "proj:region:inst" }, "u:p@unix(/cloudsql/proj:region:inst)/market?charset=utf8mb4&parseTime=True&loc=Local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mod(&cfg)
			assert.Equal(t, tt.want, BuildDSN(&cfg))
		})
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	cfg := config.Config{DBUser: "u", DBPassword: "p", DBHost: "pg", DBName: "market", DBPort: "3306"}
	assert.Equal(t, "postgres://u:p@pg:5432/market?sslmode=disable", BuildPostgresDSN(&cfg))

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", BuildPostgresDSN(&cfg))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestNewTestDBMigratesSchema(t *testing.T) {
	gdb := NewTestDB(t)
	for _, m := range model.All() {
		assert.True(t, gdb.Migrator().HasTable(m), "%T", m)
	}
	require.True(t, gdb.Migrator().HasIndex(&model.Favorite{}, "uk_favorites_user_instrument"))
	require.True(t, gdb.Migrator().HasIndex(&model.CartItem{}, "uk_cart_items_user_instrument"))
}

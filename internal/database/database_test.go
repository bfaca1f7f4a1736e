package database

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConnect_Error(t *testing.T) {
	cfg := Config{
		Driver:             "invalid",
		ConnectionString:   "invalid",
		MaxOpenConnections: 10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}

	db, err := Connect(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "sql: unknown driver")
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"postgres unique violation", &pq.Error{Code: "23505"}, true},
		{"postgres wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres other code", &pq.Error{Code: "23503"}, false},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062}, true},
		{"mysql other error", &mysql.MySQLError{Number: 1452}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsUniqueViolation(tt.err))
		})
	}
}

package resolver

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DB resolves resource ids with a SQL query that takes the username as its
// only argument and returns one integer column.
type DB struct {
	Db       *sql.DB
	querySQL string
}

// NewDB creates a database resolver. params may override "querySQL".
func NewDB(dbType string, db *sql.DB, params map[string]interface{}) (*DB, error) {
	querySQL := "SELECT id FROM users WHERE username = ?"
	if params != nil {
		if s, ok := stringWith(params, "querySQL", ""); !ok {
			return nil, errors.New("数据库配置中的 querySQL 的值不是字符串")
		} else if s != "" {
			querySQL = s
		}
	}

	if dbType == "postgres" || dbType == "postgresql" {
		querySQL = ReplacePlaceholders(querySQL)
	}
	return &DB{Db: db, querySQL: querySQL}, nil
}

// OpenDB opens the database and creates a resolver on it.
func OpenDB(dbType, dbURL string, params map[string]interface{}) (*DB, error) {
	driver := dbType
	if driver == "postgresql" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dbURL)
	if err != nil {
		return nil, err
	}
	r, err := NewDB(dbType, db, params)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (do *DB) ResourceID(ctx context.Context, username string) (int64, bool, error) {
	id, err := do.query(ctx, username)
	if err == sql.ErrNoRows {
		if lower := strings.ToLower(username); lower != username {
			id, err = do.query(ctx, lower)
		}
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (do *DB) query(ctx context.Context, username string) (int64, error) {
	var id sql.NullInt64
	if err := do.Db.QueryRowContext(ctx, do.querySQL, username).Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, sql.ErrNoRows
	}
	return id.Int64, nil
}

func (do *DB) Close() error {
	return do.Db.Close()
}

// ReplacePlaceholders 将 sql 语句中的 ? 改成 $x 形式
func ReplacePlaceholders(sql string) string {
	buf := &bytes.Buffer{}
	i := 0
	for {
		p := strings.Index(sql, "?")
		if p == -1 {
			break
		}

		if len(sql[p:]) > 1 && sql[p:p+2] == "??" { // escape ?? => ?
			buf.WriteString(sql[:p])
			buf.WriteString("?")
			sql = sql[p+2:]
		} else {
			i++
			buf.WriteString(sql[:p])
			fmt.Fprintf(buf, "$%d", i)
			sql = sql[p+1:]
		}
	}

	buf.WriteString(sql)
	return buf.String()
}

func stringWith(params map[string]interface{}, key, defaultValue string) (string, bool) {
	o, ok := params[key]
	if !ok || o == nil {
		return defaultValue, true
	}

	s, ok := o.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultValue, true
	}
	return s, true
}

package store

import "fmt"

// Driver selects which Store backend New builds.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// New builds a Store for driver, either a SQLite path or a Postgres/MySQL
// DSN depending on driver. The manager defaults to DriverSQLite when no
// storage driver is configured. Call Init before use.
func New(driver Driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		path := dsn
		if path == "" {
			path = "nodes-manager.db"
		}
		return NewSQLiteStore(path), nil
	case DriverPostgres:
		return NewGormStore("postgres", dsn)
	case DriverMySQL:
		return NewGormStore("mysql", dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

// Package db is the Driver factory: it dispatches on profile.Driver the way
// cmd/memoryengine/main.go's db.NewDBDriver(profile) call expects, resolved
// here against this module's own postgres/sqlite drivers.
package db

import (
	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/internal/profile"
	"github.com/mnemograph/mnemograph/store"
	"github.com/mnemograph/mnemograph/store/db/postgres"
	"github.com/mnemograph/mnemograph/store/db/sqlite"
)

// NewDBDriver opens the driver named by profile.Driver ("postgres" or
// "sqlite") against profile.DSN.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "postgres":
		return postgres.NewDB(profile.DSN)
	case "sqlite":
		return sqlite.NewDB(profile.DSN)
	default:
		return nil, errors.Errorf("db: unsupported driver %q", profile.Driver)
	}
}

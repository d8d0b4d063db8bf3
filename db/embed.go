package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// SQLiteMigrations returns the sqlite migration files at the root of the FS.
func SQLiteMigrations() fs.FS {
	return mustSub("migrations/sqlite")
}

// PostgresMigrations returns the postgres migration files at the root of the FS.
func PostgresMigrations() fs.FS {
	return mustSub("migrations/postgres")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

package db

import (
	"database/sql"
	_ "embed"
	"log"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// InitDB opens the Postgres connection and applies the schema.
func InitDB(dsn string) *sql.DB {
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	if err = database.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	applySchema(database)
	log.Println("Database initialized")
	return database
}

func applySchema(database *sql.DB) {
	if _, err := database.Exec(schemaSQL); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"signals-auth/internal/config"
	"signals-auth/internal/db"
)

// migrate aplica el esquema de accounts sin levantar la API. Util cuando
// RUN_MIGRATIONS=false en el servidor.
func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "tiempo maximo para conectar y migrar")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadDatabaseConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("db pool: %v", err)
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	fmt.Println("migrations applied")
}

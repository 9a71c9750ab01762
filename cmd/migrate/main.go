// Aplica las migraciones SQL de migrations/postgres contra el DSN
// configurado. Uso: migrate [up|down] [steps].
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/authcore/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "ruta al config YAML")
		envFile    = flag.String("env-file", ".env", "archivo .env opcional")
		dir        = flag.String("dir", "migrations/postgres", "directorio con *_up.sql y *_down.sql")
		dsn        = flag.String("dsn", "", "DSN de Postgres; si está vacío se toma del config")
	)
	flag.Parse()

	action := "up"
	steps := 0
	if args := flag.Args(); len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
		if len(args) >= 2 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				steps = n
			}
		}
	}

	if *envFile != "" {
		if _, err := os.Stat(*envFile); err == nil {
			_ = godotenv.Load(*envFile)
		}
	}

	target := *dsn
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v", err)
		}
		target = cfg.Storage.DSN
	}
	if target == "" {
		log.Fatal("no DSN: pasá -dsn o configurá storage.dsn")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, target)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		if err := run(ctx, pool, *dir, "_up.sql", steps, false); err != nil {
			log.Fatal(err)
		}
	case "down":
		if err := run(ctx, pool, *dir, "_down.sql", steps, true); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("acción desconocida %q. Uso: up | down [steps]", action)
	}
}

// run aplica las migraciones con el sufijo dado en orden ascendente;
// reverse invierte el orden (down corre de la más nueva a la más vieja).
func run(ctx context.Context, pool *pgxpool.Pool, dir, suffix string, steps int, reverse bool) error {
	files, err := listSQL(dir, suffix)
	if err != nil {
		return fmt.Errorf("list %s: %w", suffix, err)
	}
	if len(files) == 0 {
		log.Printf("no hay migraciones *%s en %s, nada que hacer", suffix, dir)
		return nil
	}
	sort.Strings(files)
	if reverse {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	log.Printf("aplicando %d migración(es)...", len(files))
	for _, f := range files {
		if err := execSQLFile(ctx, pool, f); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
	}
	log.Println("listo")
	return nil
}

func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// execSQLFile ejecuta el archivo entero en un solo Exec: sin argumentos,
// pgx usa el protocolo simple y acepta múltiples sentencias.
func execSQLFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return err
	}
	log.Printf("OK %s (%s)", filepath.Base(path), time.Since(start).Truncate(time.Millisecond))
	return nil
}

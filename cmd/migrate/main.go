package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"deposit-core/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var command, dir string
	var steps int
	flag.StringVar(&command, "cmd", "up", "Command to run: up, down, version")
	flag.StringVar(&dir, "dir", "migrations", "Directory holding the *.sql files")
	flag.IntVar(&steps, "steps", 0, "Apply only n migrations (negative rolls back)")
	flag.Parse()

	// 加载配置
	config.Init()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Host,
		config.Global.DB.Port,
		config.Global.DB.Name,
	)

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		log.Fatalf("Migration init failed: %v", err)
	}
	defer m.Close()

	switch {
	case steps != 0:
		err = m.Steps(steps)
	case command == "up":
		err = m.Up()
	case command == "down":
		err = m.Down()
	case command == "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatalf("Migration version failed: %v", verr)
		}
		log.Printf("version=%d dirty=%v", v, dirty)
		return
	default:
		log.Fatalf("Unknown command: %s", command)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
	log.Printf("Migration %s done", command)
}

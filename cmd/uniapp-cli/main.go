package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jask-aran/uniapp/internal/cli"
	"github.com/jask-aran/uniapp/internal/config"
	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/database"
	"github.com/jask-aran/uniapp/internal/database/repository"
	"github.com/jask-aran/uniapp/internal/domain"
	"github.com/jask-aran/uniapp/internal/service"
	"github.com/jask-aran/uniapp/internal/testdata"
)

func main() {
	seedN := flag.Int("seed", 0, "register N sample students when the database is empty")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}

	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := core.NewStore("student")
	notifier := core.NewNotifier()
	defer notifier.Close()
	proc := core.NewProcessor(store, notifier, domain.NewStudents(nil))

	archive := &service.Archive{Repo: repository.NewStudentRepo(db), Store: store}
	restored, err := archive.Restore(ctx, proc)
	if err != nil {
		log.Fatalf("restore students: %v", err)
	}

	archiveSub := notifier.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		archive.Run(ctx, archiveSub, func(err error) { log.Printf("warn: %v", err) })
	}()

	if *seedN > 0 && restored == 0 {
		if err := testdata.Seed(proc, *seedN, nil); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	enrollment := &service.Enrollment{Processor: proc}
	admin := &service.Admin{Processor: proc, Store: store}

	uiSub := notifier.Subscribe()
	app := cli.New(enrollment, admin, uiSub, os.Stdin, os.Stdout)
	if err := app.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}

	notifier.Unsubscribe(archiveSub)
	wg.Wait()
	if err := archive.Flush(ctx); err != nil {
		log.Printf("warn: final save: %v", err)
	}
}

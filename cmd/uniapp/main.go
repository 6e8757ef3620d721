package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask-aran/uniapp/internal/config"
	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/database"
	"github.com/jask-aran/uniapp/internal/database/repository"
	"github.com/jask-aran/uniapp/internal/domain"
	"github.com/jask-aran/uniapp/internal/prefs"
	"github.com/jask-aran/uniapp/internal/service"
	"github.com/jask-aran/uniapp/internal/tui"
)

func main() {
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
	if _, err := archive.Restore(ctx, proc); err != nil {
		log.Fatalf("restore students: %v", err)
	}

	archiveSub := notifier.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		archive.Run(ctx, archiveSub, func(err error) { log.Printf("warn: %v", err) })
	}()

	pr, err := prefs.Load()
	if err != nil {
		log.Printf("warn: prefs: %v", err)
	}
	if pr.Accent != "" {
		cfg.UI.Accent = pr.Accent
	}

	services := tui.Services{
		Enrollment: &service.Enrollment{Processor: proc},
		Admin:      &service.Admin{Processor: proc, Store: store},
		Search:     &service.Search{Store: store, Threshold: cfg.Search.Threshold, Limit: cfg.Search.Limit},
	}

	uiSub := notifier.Subscribe()
	p := tea.NewProgram(tui.New(ctx, cfg, services, uiSub, pr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}

	// Stop the mirror before the final flush so the two cannot interleave.
	notifier.Unsubscribe(archiveSub)
	wg.Wait()
	if err := archive.Flush(ctx); err != nil {
		log.Printf("warn: final save: %v", err)
	}
}

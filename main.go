package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TWRT/taskboard/internal/api"
	"github.com/TWRT/taskboard/internal/config"
	"github.com/TWRT/taskboard/internal/repository"
	"github.com/TWRT/taskboard/internal/service"
	"github.com/TWRT/taskboard/internal/watch"
)

func main() {
	cfg, err := config.Load(os.Getenv("TASKBOARD_CONFIG"))
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	hours, err := cfg.WorkingHours()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	// Store
	var (
		store repository.Store
		admin *service.AdminService
	)
	switch cfg.Store {
	case config.StoreCSV:
		store = repository.NewCSVStore(cfg.CSVPath)
		fmt.Println("✅ CSV store:", cfg.CSVPath)
	default:
		db, err := repository.InitDB(cfg.DBDriver, cfg.DBPath)
		if err != nil {
			log.Fatal("Error initializing database: ", err)
		}
		defer db.Close()

		repo := repository.NewTaskRepository(db)
		store = repo
		admin = service.NewAdminService(repo, nil)
		fmt.Printf("✅ SQLite store: %s (driver %s)\n", cfg.DBPath, cfg.DBDriver)
	}

	board := service.NewBoardService(store, hours, nil)
	if err := board.Load(context.Background()); err != nil {
		log.Fatal("Error loading tasks: ", err)
	}
	state := board.State()
	fmt.Printf("✅ Loaded %d tasks for %d owners\n", state.Tasks, state.Owners)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// External edits (taskadmin, a spreadsheet save) show up on the next poll.
	poller := watch.NewPoller(store, cfg.PollInterval)
	go poller.Run(ctx)
	go func() {
		for rev := range poller.Changes() {
			log.Printf("[board] store changed (revision %d), reloading", rev)
			// Reload logs its own failures and keeps the previous view.
			board.Reload(ctx)
		}
	}()

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.SetupRouter(board, admin),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Println("🚀 Server listening on", cfg.Addr)
	fmt.Println("📝 Endpoints:")
	fmt.Println("   GET  /board/{owner}           - Owner's board")
	fmt.Println("   GET  /schedule/{owner}        - Owner's schedule")
	fmt.Println("   GET  /timer/{owner}           - Running timer")
	fmt.Println("   GET  /progress                - Completion percentage")
	fmt.Println("   POST /tasks/{id}/transition   - Change status")
	fmt.Println("   POST /tasks/{id}/reassign     - Change owner")
	if admin != nil {
		fmt.Println("   *    /admin/...               - Direct edits")
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Error starting server: ", err)
	}
}

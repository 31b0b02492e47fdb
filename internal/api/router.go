package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TWRT/taskboard/internal/api/handlers"
	"github.com/TWRT/taskboard/internal/service"
)

// SetupRouter wires the board API. The admin API is mounted under /admin/
// when adminService is non-nil (it needs the SQLite store).
func SetupRouter(boardService *service.BoardService, adminService *service.AdminService) *http.ServeMux {
	mux := http.NewServeMux()

	boardHandler := handlers.NewBoardHandler(boardService)

	mux.HandleFunc("GET /health", boardHandler.Health)
	mux.HandleFunc("GET /owners", boardHandler.GetOwners)
	mux.HandleFunc("GET /projects", boardHandler.GetProjects)
	mux.HandleFunc("GET /projects/{project}/milestones", boardHandler.GetMilestones)
	mux.HandleFunc("GET /progress", boardHandler.GetProgress)

	mux.HandleFunc("GET /board/{owner}", boardHandler.GetBoard)
	mux.HandleFunc("GET /schedule/{owner}", boardHandler.GetSchedule)
	mux.HandleFunc("GET /timer/{owner}", boardHandler.GetTimer)

	mux.HandleFunc("GET /tasks/{id}", boardHandler.GetTask)
	mux.HandleFunc("GET /tasks/{id}/blockers", boardHandler.GetBlockers)
	mux.HandleFunc("POST /tasks/{id}/transition", boardHandler.PostTransition)
	mux.HandleFunc("POST /tasks/{id}/reassign", boardHandler.PostReassign)
	mux.HandleFunc("POST /tasks/{id}/{action}", boardHandler.PostAction)

	if adminService != nil {
		mux.Handle("/admin/", NewAdminEngine(adminService))
	}

	return mux
}

// NewAdminEngine builds the gin engine serving /admin/.
func NewAdminEngine(adminService *service.AdminService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	handlers.NewAdminHandler(adminService).Register(engine.Group("/admin"))
	return engine
}

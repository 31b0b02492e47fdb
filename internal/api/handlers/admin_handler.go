package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TWRT/taskboard/internal/models"
	"github.com/TWRT/taskboard/internal/repository"
	"github.com/TWRT/taskboard/internal/service"
)

// AdminHandler serves direct row edits. These bypass the lifecycle guards;
// the board picks the changes up on its next poll.
type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Register mounts the admin routes on group.
func (h *AdminHandler) Register(group *gin.RouterGroup) {
	group.GET("/projects", h.listProjects)
	group.GET("/milestones", h.listMilestones)
	group.GET("/validate", h.validate)
	group.GET("/export", h.export)
	group.POST("/import", h.importCSV)

	tasks := group.Group("/tasks")
	{
		tasks.GET("", h.listTasks)
		tasks.POST("", h.addTask)
		tasks.GET("/:id", h.showTask)
		tasks.PATCH("/:id", h.updateTask)
		tasks.DELETE("/:id", h.deleteTask)
		tasks.PUT("/:id/deps", h.setDeps)
		tasks.PUT("/:id/owner", h.reassign)
		tasks.PUT("/:id/priority", h.setPriority)
		tasks.PUT("/:id/status", h.setStatus)
	}
}

// abort reports err. Graph errors here come from the caller's own edit, so
// they are 422 rather than the board's 500.
func abort(c *gin.Context, err error) {
	status := StatusFor(err)
	if errors.Is(err, models.ErrCycle) || errors.Is(err, models.ErrDanglingDependency) || errors.Is(err, models.ErrSchema) {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H(ErrorBody(err)))
}

func badJSON(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "JSON error: " + err.Error()})
}

func (h *AdminHandler) listTasks(c *gin.Context) {
	tasks, err := h.adminService.ListTasks(c.Request.Context(), repository.ListFilter{
		Project:   c.Query("project"),
		Milestone: c.Query("milestone"),
		Owner:     c.Query("owner"),
		Status:    models.Status(c.Query("status")),
	})
	if err != nil {
		abort(c, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (h *AdminHandler) addTask(c *gin.Context) {
	var in service.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c, err)
		return
	}
	task, err := h.adminService.AddTask(c.Request.Context(), in)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *AdminHandler) showTask(c *gin.Context) {
	task, err := h.adminService.ShowTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// updateTask takes a JSON object of column name to value, e.g.
// {"Priority": "High", "EstimatedHours": "6"}.
func (h *AdminHandler) updateTask(c *gin.Context) {
	var set map[string]string
	if err := c.ShouldBindJSON(&set); err != nil {
		badJSON(c, err)
		return
	}
	task, err := h.adminService.UpdateTask(c.Request.Context(), c.Param("id"), set)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *AdminHandler) deleteTask(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err := h.adminService.DeleteTask(c.Request.Context(), c.Param("id"), force); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *AdminHandler) setDeps(c *gin.Context) {
	var body struct {
		DependsOn []string `json:"depends_on"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badJSON(c, err)
		return
	}
	task, err := h.adminService.SetDeps(c.Request.Context(), c.Param("id"), body.DependsOn)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *AdminHandler) reassign(c *gin.Context) {
	h.setOne(c, "owner", h.adminService.Reassign)
}

func (h *AdminHandler) setPriority(c *gin.Context) {
	h.setOne(c, "priority", h.adminService.SetPriority)
}

func (h *AdminHandler) setStatus(c *gin.Context) {
	h.setOne(c, "status", h.adminService.SetStatus)
}

func (h *AdminHandler) setOne(c *gin.Context, key string, set func(ctx context.Context, id, value string) (*models.Task, error)) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		badJSON(c, err)
		return
	}
	task, err := set(c.Request.Context(), c.Param("id"), body[key])
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *AdminHandler) listProjects(c *gin.Context) {
	projects, err := h.adminService.ListProjects(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	if projects == nil {
		projects = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *AdminHandler) listMilestones(c *gin.Context) {
	milestones, err := h.adminService.ListMilestones(c.Request.Context(), c.Query("project"))
	if err != nil {
		abort(c, err)
		return
	}
	if milestones == nil {
		milestones = []service.MilestoneRef{}
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// importCSV reads a CSV table from the request body. ?replace=true clears
// the store first.
func (h *AdminHandler) importCSV(c *gin.Context) {
	replace, _ := strconv.ParseBool(c.DefaultQuery("replace", "false"))
	n, err := h.adminService.ImportCSV(c.Request.Context(), c.Request.Body, "request body", replace)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n, "replace": replace})
}

func (h *AdminHandler) export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	var buf bytes.Buffer
	if err := h.adminService.Export(c.Request.Context(), &buf, format); err != nil {
		abort(c, err)
		return
	}
	contentType := "application/json"
	if format == "yaml" || format == "yml" {
		contentType = "application/yaml"
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *AdminHandler) validate(c *gin.Context) {
	report, err := h.adminService.Validate(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

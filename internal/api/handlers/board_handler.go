package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TWRT/taskboard/internal/lifecycle"
	"github.com/TWRT/taskboard/internal/models"
	"github.com/TWRT/taskboard/internal/progress"
	"github.com/TWRT/taskboard/internal/service"
)

type TransitionRequestBody struct {
	Actor   string `json:"actor"`
	Status  string `json:"status"`
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type ReassignRequestBody struct {
	Actor   string `json:"actor"`
	Owner   string `json:"owner"`
	Comment string `json:"comment"`
}

type BoardHandler struct {
	boardService *service.BoardService
}

func NewBoardHandler(boardService *service.BoardService) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
	}
}

func (h *BoardHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.boardService.State()
	status := "ok"
	if state.LastError != "" {
		status = "stale"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"state":  state,
	})
}

func (h *BoardHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owners":        h.boardService.Owners(),
		"active_counts": h.boardService.OwnerActiveCounts(),
	})
}

func (h *BoardHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": h.boardService.Projects(),
	})
}

func (h *BoardHandler) GetMilestones(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project":    project,
		"milestones": h.boardService.Milestones(project),
	})
}

func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.BoardFilter{
		Project:   q.Get("project"),
		Milestone: q.Get("milestone"),
	}
	if p := q.Get("priority"); p != "" {
		priority, err := models.ParsePriority(p)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Priority = priority
	}

	board, err := h.boardService.Board(r.PathValue("owner"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// GetSchedule allocates the owner's work from now, or from ?from= (RFC 3339).
// ?format=yaml returns YAML instead of JSON.
func (h *BoardHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	var from time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, &models.ValidationError{Field: "from", Value: v, Msg: "expected an RFC 3339 timestamp"})
			return
		}
		from = t
	}

	tasks, err := h.boardService.Schedule(owner, from)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]interface{}{
		"owner": owner,
		"tasks": tasks,
	}

	if r.URL.Query().Get("format") == "yaml" {
		out, err := yaml.Marshal(resp)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BoardHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	timer, err := h.boardService.Timer(r.PathValue("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timer)
}

func (h *BoardHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.boardService.Progress(progress.Scope{
		Project:   q.Get("project"),
		Milestone: q.Get("milestone"),
	}))
}

func (h *BoardHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.boardService.Task(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *BoardHandler) GetBlockers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reasons, err := h.boardService.BlockReasons(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": id,
		"blocked": len(reasons) > 0,
		"reasons": reasons,
	})
}

// PostTransition accepts either a target status or a named action.
func (h *BoardHandler) PostTransition(w http.ResponseWriter, r *http.Request) {
	var reqBody TransitionRequestBody
	if !decodeBody(w, r, &reqBody) {
		return
	}

	id := r.PathValue("id")
	var (
		task *models.Task
		err  error
	)
	switch {
	case reqBody.Action != "":
		task, err = h.boardService.Act(r.Context(), id, reqBody.Actor, lifecycle.Action(reqBody.Action), reqBody.Comment)
	case reqBody.Status == "":
		err = &models.ValidationError{Field: "status", Msg: "status or action is required"}
	default:
		task, err = h.boardService.Transition(r.Context(), lifecycle.TransitionRequest{
			TaskID:  id,
			Actor:   reqBody.Actor,
			To:      models.Status(reqBody.Status),
			Comment: reqBody.Comment,
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *BoardHandler) PostAction(w http.ResponseWriter, r *http.Request) {
	var reqBody TransitionRequestBody
	if !decodeBody(w, r, &reqBody) {
		return
	}
	task, err := h.boardService.Act(r.Context(), r.PathValue("id"), reqBody.Actor, lifecycle.Action(r.PathValue("action")), reqBody.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *BoardHandler) PostReassign(w http.ResponseWriter, r *http.Request) {
	var reqBody ReassignRequestBody
	if !decodeBody(w, r, &reqBody) {
		return
	}
	task, err := h.boardService.Reassign(r.Context(), lifecycle.ReassignRequest{
		TaskID:   r.PathValue("id"),
		Actor:    reqBody.Actor,
		NewOwner: reqBody.Owner,
		Comment:  reqBody.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Error trying to read the body: " + err.Error(),
		})
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "JSON error: " + err.Error(),
		})
		return false
	}
	return true
}

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/syncclipboard-go/store"
	"github.com/moyoez/syncclipboard-go/tool"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type HistoryController struct {
	store ClipboardStore
}

func NewHistoryController(st ClipboardStore) *HistoryController {
	return &HistoryController{store: st}
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("invalid "+key))
		return 0, false
	}
	return n, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("invalid id"))
		return 0, false
	}
	return id, true
}

// HandleList serves GET /history?limit=&offset=, pinned first.
func (ctrl *HistoryController) HandleList(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	if limit == 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := ctrl.store.History(limit, offset)
	if err != nil {
		tool.DefaultLogger.Errorf("[API] failed to list history: %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("store unavailable"))
		return
	}
	c.JSON(http.StatusOK, records)
}

func (ctrl *HistoryController) HandleDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := ctrl.store.Delete(id); err != nil {
		ctrl.writeStoreError(c, err)
		return
	}
	tool.DefaultLogger.Infof("[API] history record %d deleted", id)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

// HandlePatch serves PATCH /history/:id with body {"pinned": bool}.
func (ctrl *HistoryController) HandlePatch(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read request body"))
		return
	}
	var req pinRequest
	if err := sonic.Unmarshal(body, &req); err != nil || req.Pinned == nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body"))
		return
	}
	if err := ctrl.store.SetPinned(id, *req.Pinned); err != nil {
		ctrl.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (ctrl *HistoryController) writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("record not found"))
		return
	}
	tool.DefaultLogger.Errorf("[API] history update failed: %v", err)
	c.JSON(http.StatusInternalServerError, tool.FastReturnError("store unavailable"))
}

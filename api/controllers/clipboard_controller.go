package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/syncclipboard-go/notify"
	"github.com/moyoez/syncclipboard-go/store"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const (
	HeaderClipboardID = "X-Clipboard-Id"
	HeaderDeviceName  = "X-Device-Name"

	// MaxWait caps the wait query parameter.
	MaxWait = 120 * time.Second
)

// ClipboardStore is the persistence the HTTP layer needs.
type ClipboardStore interface {
	Save(entry types.ClipboardEntry) (int64, error)
	Latest() (types.HistoryRecord, error)
	LatestID() (int64, bool, error)
	History(limit, offset int) ([]types.HistoryRecord, error)
	Delete(id int64) error
	SetPinned(id int64, pinned bool) error
}

// SaveListener is told about every stored record.
type SaveListener interface {
	ClipboardUpdated(rec types.HistoryRecord)
}

type ClipboardController struct {
	store    ClipboardStore
	broker   *notify.Broker
	listener SaveListener
}

func NewClipboardController(st ClipboardStore, broker *notify.Broker, listener SaveListener) *ClipboardController {
	return &ClipboardController{store: st, broker: broker, listener: listener}
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, errors.New("invalid wait")
	}
	if seconds > int(MaxWait/time.Second) {
		return MaxWait, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// HandleGet serves GET /SyncClipboard.json?wait=&last_id=. When wait > 0 and
// the store has nothing newer than last_id, the request is held until a
// save or the wait elapses.
func (ctrl *ClipboardController) HandleGet(c *gin.Context) {
	wait, err := parseWait(c.Query("wait"))
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}
	lastID := int64(-1)
	if raw := c.Query("last_id"); raw != "" {
		lastID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, tool.FastReturnError("invalid last_id"))
			return
		}
	}

	if wait > 0 {
		changed := ctrl.broker.Changed()
		current, ok, err := ctrl.store.LatestID()
		if err != nil {
			tool.DefaultLogger.Errorf("[API] failed to read latest id: %v", err)
			c.JSON(http.StatusInternalServerError, tool.FastReturnError("store unavailable"))
			return
		}
		if !ok {
			current = -1
		}
		if current == lastID {
			notify.WaitOn(c.Request.Context(), changed, wait)
		}
	}

	rec, err := ctrl.store.Latest()
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("clipboard empty"))
		return
	}
	if err != nil {
		tool.DefaultLogger.Errorf("[API] failed to read latest entry: %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("store unavailable"))
		return
	}
	entry, err := rec.Entry()
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return
	}
	data, err := types.EncodeEntry(entry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return
	}
	c.Header(HeaderClipboardID, strconv.FormatInt(rec.ID, 10))
	c.Data(http.StatusOK, "application/json", data)
}

// HandlePut serves PUT /SyncClipboard.json. Waiters are woken after the
// record is committed.
func (ctrl *ClipboardController) HandlePut(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read request body"))
		return
	}
	entry, err := types.DecodeEntry(body)
	if err != nil {
		tool.DefaultLogger.Debugf("[API] rejected clipboard body: %v", err)
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}
	if entry.Source() == "" {
		if name := c.GetHeader(HeaderDeviceName); name != "" {
			entry = types.WithDevice(entry, name)
		}
	}

	id, err := ctrl.store.Save(entry)
	if err != nil {
		tool.DefaultLogger.Errorf("[API] failed to save clipboard entry: %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("failed to save entry"))
		return
	}
	ctrl.broker.NotifyAll()

	rec := types.RecordFromEntry(entry)
	rec.ID = id
	tool.DefaultLogger.Infof("[API] saved %s entry %d from %q", rec.Type, id, rec.Device)
	if ctrl.listener != nil {
		ctrl.listener.ClipboardUpdated(rec)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
}

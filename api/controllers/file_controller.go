package controllers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/syncclipboard-go/tool"
)

// FileController stores content-addressed blobs in a flat directory.
type FileController struct {
	dir string
}

func NewFileController(dir string) *FileController {
	return &FileController{dir: dir}
}

// resolve maps a blob name to a path inside dir, rejecting anything that
// is not a plain file name.
func (ctrl *FileController) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(ctrl.dir, name), nil
}

// HandlePut streams the request body to the blob. An existing blob is kept
// and the upload is discarded.
func (ctrl *FileController) HandlePut(c *gin.Context) {
	path, err := ctrl.resolve(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}
	if _, err := os.Stat(path); err == nil {
		_, _ = io.Copy(io.Discard, c.Request.Body)
		tool.DefaultLogger.Debugf("[API] file %s already exists, skipping", filepath.Base(path))
		c.JSON(http.StatusOK, gin.H{"status": "exists"})
		return
	}

	if err := os.MkdirAll(ctrl.dir, 0o755); err != nil {
		tool.DefaultLogger.Errorf("[API] create upload dir failed: %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("create upload dir failed"))
		return
	}
	tmp, err := os.CreateTemp(ctrl.dir, ".upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("create file failed"))
		return
	}
	written, err := io.Copy(tmp, c.Request.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		tool.DefaultLogger.Errorf("[API] write file failed: %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("write file failed"))
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("write file failed"))
		return
	}
	tool.DefaultLogger.Infof("[API] upload saved: %s (%d bytes)", filepath.Base(path), written)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (ctrl *FileController) stat(c *gin.Context) (string, os.FileInfo, bool) {
	path, err := ctrl.resolve(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return "", nil, false
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("file not found"))
		return "", nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return "", nil, false
	}
	return path, info, true
}

func (ctrl *FileController) HandleGet(c *gin.Context) {
	path, _, ok := ctrl.stat(c)
	if !ok {
		return
	}
	c.File(path)
}

func (ctrl *FileController) HandleHead(c *gin.Context) {
	_, info, ok := ctrl.stat(c)
	if !ok {
		return
	}
	c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.Status(http.StatusOK)
}

package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codemind/codemind/internal/scanner"
)

// previewLimit caps how many file paths a scan preview returns.
const previewLimit = 100

type scanRequest struct {
	Path string `json:"path" binding:"required"`
}

func (s *Server) handleScanPreview(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files, err := scanner.Scan(req.Path)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, scanner.ErrPathNotFound) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	preview := files
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	c.JSON(http.StatusOK, gin.H{
		"root":       req.Path,
		"file_count": len(files),
		"files":      preview,
	})
}

type parseRequest struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content"`
}

type parsedFunction struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (s *Server) handleTestParser(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks := s.chunker.Split(req.Filename, []byte(req.Content))
	functions := make([]parsedFunction, 0, len(chunks))
	for _, ck := range chunks {
		functions = append(functions, parsedFunction{
			Name:      ck.Name,
			Code:      ck.Code,
			StartLine: ck.StartLine,
			EndLine:   ck.EndLine,
		})
	}
	c.JSON(http.StatusOK, gin.H{"found_functions": functions})
}

// handleIngest runs a full ingestion synchronously and reports the
// final outcome only. The streaming variant serves progress-hungry
// clients.
func (s *Server) handleIngest(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.ingestMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "an ingestion is already running"})
		return
	}
	defer s.ingestMu.Unlock()

	if err := s.pipeline.Ingest(c.Request.Context(), req.Path); err != nil {
		s.log.Error("ingestion failed", zap.String("target", req.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Ingestion complete",
		"target":  req.Path,
	})
}

type chatRequest struct {
	Message    string `json:"message" binding:"required"`
	FilterPath string `json:"filter_path"`
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	result, err := s.rag.Answer(ctx, req.Message, req.FilterPath)
	if err != nil {
		s.log.Error("chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// History is best effort: a persistence failure must not cost the
	// user an already computed answer.
	sessionID := req.SessionID
	if req.UserID != "" {
		if sessionID == "" {
			id, err := s.chat.CreateSession(ctx, req.UserID, req.Message)
			if err != nil {
				s.log.Warn("session create failed", zap.Error(err))
			} else {
				sessionID = id
			}
		}
		if sessionID != "" {
			if err := s.chat.AddMessage(ctx, sessionID, "user", req.Message); err != nil {
				s.log.Warn("save user message failed", zap.Error(err))
			}
			if err := s.chat.AddMessage(ctx, sessionID, "assistant", result.Answer); err != nil {
				s.log.Warn("save assistant message failed", zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":     result.Answer,
		"context":    result.Context,
		"session_id": sessionID,
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.chat.SessionsByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleMessages(c *gin.Context) {
	messages, err := s.chat.MessagesBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type fileNode struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"` // "folder" | "file"
	Path     string     `json:"path"`
	Children []fileNode `json:"children,omitempty"`
}

// hiddenEntries are never shown in the file tree.
var hiddenEntries = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
	".git":         true,
}

func (s *Server) handleFiles(c *gin.Context) {
	root := c.Query("path")
	if _, err := os.Stat(root); err != nil {
		c.JSON(http.StatusOK, []fileNode{})
		return
	}
	c.JSON(http.StatusOK, buildTree(root))
}

func buildTree(dir string) []fileNode {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []fileNode{}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	tree := make([]fileNode, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if hiddenEntries[name] || len(name) > 0 && name[0] == '.' {
			continue
		}
		full := filepath.Join(dir, name)
		node := fileNode{Name: name, Type: "file", Path: full}
		if entry.IsDir() {
			node.Type = "folder"
			node.Children = buildTree(full)
		}
		tree = append(tree, node)
	}
	return tree
}

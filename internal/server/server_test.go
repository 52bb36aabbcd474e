package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/codemind/codemind/internal/chunker"
	"github.com/codemind/codemind/internal/config"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	srv := New(cfg, nil, nil, chunker.New(1000, 200), nil, nil)
	return srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	w := doJSON(t, newTestRouter(t), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"online"}`, w.Body.String())
}

func TestScanPreview(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.ts"), []byte("export {}\n"), 0o644))

	w := doJSON(t, newTestRouter(t), http.MethodPost, "/scan/preview", gin.H{"path": root})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Root      string   `json:"root"`
		FileCount int      `json:"file_count"`
		Files     []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, root, resp.Root)
	require.Equal(t, 2, resp.FileCount)
	require.Len(t, resp.Files, 2)
}

func TestScanPreview_MissingPath(t *testing.T) {
	w := doJSON(t, newTestRouter(t), http.MethodPost, "/scan/preview", gin.H{"path": "/no/such/dir"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanPreview_BadBody(t *testing.T) {
	w := doJSON(t, newTestRouter(t), http.MethodPost, "/scan/preview", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTestParser(t *testing.T) {
	source := "def alpha():\n    return 1\n\ndef beta():\n    return 2\n"
	w := doJSON(t, newTestRouter(t), http.MethodPost, "/scan/test-parser", gin.H{
		"filename": "sample.py",
		"content":  source,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		FoundFunctions []parsedFunction `json:"found_functions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.FoundFunctions, 2)
	require.Equal(t, "alpha", resp.FoundFunctions[0].Name)
	require.Equal(t, "beta", resp.FoundFunctions[1].Name)
}

func TestFilesTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.py"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644))

	w := doJSON(t, newTestRouter(t), http.MethodGet, "/files?path="+root, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tree []fileNode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tree))
	require.Len(t, tree, 1)
	require.Equal(t, "src", tree[0].Name)
	require.Equal(t, "folder", tree[0].Type)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, "app.py", tree[0].Children[0].Name)
	require.Equal(t, "file", tree[0].Children[0].Type)
}

func TestFilesTree_MissingPath(t *testing.T) {
	w := doJSON(t, newTestRouter(t), http.MethodGet, "/files?path=/no/such/dir", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("allow all when unconfigured", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(nil))
		router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowlist enforced", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS([]string{"https://ui.example"}))
		router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://ui.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, "https://ui.example", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(nil))

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://ui.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
}

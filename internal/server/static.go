package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
)

// staticHandler serves the built client from root. Paths that do not name a
// file fall back to the index so client-side routes work on reload.
func staticHandler(root, index string, maxAge int) gin.HandlerFunc {
	fileServer := http.FileServer(http.Dir(root))
	indexPath := filepath.Join(root, index)
	cacheControl := "max-age=" + strconv.Itoa(maxAge)

	return func(c *gin.Context) {
		if c.Writer.Header().Get("Cache-Control") == "" {
			c.Header("Cache-Control", cacheControl)
		}

		name := path.Clean("/" + c.Request.URL.Path)
		if name == "/" || !isFile(root, name) {
			c.File(indexPath)
			return
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}

func isFile(root, name string) bool {
	f, err := http.Dir(root).Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && info.Mode().IsRegular()
}

// indexExists reports whether the client build is present.
func indexExists(root, index string) bool {
	info, err := os.Stat(filepath.Join(root, index))
	return err == nil && info.Mode().IsRegular()
}

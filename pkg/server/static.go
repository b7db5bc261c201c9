package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/WhileEndless/webcc/pkg/builder"
	"github.com/WhileEndless/webcc/pkg/message"
	"github.com/WhileEndless/webcc/pkg/webccerr"
)

// serveStatic resolves urlPath under docRoot and builds a 200 response
// streaming the file's contents. Any path that escapes docRoot after
// cleaning is rejected, and directories are treated as not found (§4.6:
// "path traversal outside doc root is forbidden").
func serveStatic(docRoot, urlPath string) (*message.Response, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(urlPath, "/"))
	full := filepath.Join(docRoot, rel)

	root, err := filepath.Abs(docRoot)
	if err != nil {
		return nil, webccerr.NewFile("stat", err)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return nil, webccerr.NewFile("stat", err)
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return nil, webccerr.NewFile("stat", os.ErrNotExist)
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return nil, webccerr.NewFile("stat", err)
	}
	if fi.IsDir() {
		return nil, webccerr.NewFile("stat", os.ErrNotExist)
	}

	return builder.NewResponseBuilder().OK().File(abs, 0, false).Build()
}

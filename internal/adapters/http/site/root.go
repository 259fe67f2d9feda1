// Package site serves the booth front end.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
)

// Error constants
var (
	ErrStaticDir = errors.New("static dir is not a directory")
)

// Register serves dir at / when set, else the embedded booth page.
func Register(_ context.Context, mux *http.ServeMux, dir string) error {
	if mux == nil {
		panic("mux is nil")
	}

	root := FS()
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStaticDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrStaticDir, dir)
		}
		root = http.Dir(dir)
	}

	mux.Handle("/", http.FileServer(root))
	return nil
}

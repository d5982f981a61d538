// Package static embeds the browser kiosk page.
package static

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// FS returns the kiosk page assets rooted at the dist directory.
func FS() fs.FS {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return fsys
}

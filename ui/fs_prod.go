//go:build !debug

package ui

import (
	"embed"
	"io/fs"
)

//go:embed dist
var distFS embed.FS

// DistFS returns the embedded UI filesystem rooted at dist (production: baked into binary).
func DistFS() fs.FS {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		// dist is embedded above, so Sub cannot fail.
		panic(err)
	}
	return sub
}

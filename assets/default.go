package assets

import (
	"io/fs"

	"github.com/sarchlab/shiba/alloc"
)

// Default is the process-wide loader. It allocates through alloc.Default and
// reads from the operating-system filesystem unless SetFS substitutes one.
var Default = NewLoader(alloc.Default)

// ReadFile reads the resource named by path through the Default loader.
func ReadFile(path string) ([]byte, error) {
	return Default.ReadFile(path)
}

// SetFS substitutes fsys for the OS filesystem on the Default loader.
func SetFS(fsys fs.FS) {
	Default.SetFS(fsys)
}

package blob

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// localProvider writes under root on fs; objects are served from publicBase
type localProvider struct {
	fs         afero.Fs
	root       string
	publicBase string
}

// write creates the destination directories and writes the object in one go
func (l *localProvider) write(key string, data []byte) error {
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if err := l.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(l.fs, full, data, 0o644)
}

// url is the served path, "/uploads/<folder>/<name>" for the default base
func (l *localProvider) url(key string) string {
	return strings.TrimRight(l.publicBase, "/") + "/" + key
}

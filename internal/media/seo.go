package media

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// SeoFilename turns a display name ("Sony Alpha 7 IV body.JPG") into a
// URL-friendly slug ("sony-alpha-7-iv-body"). A file extension, if present,
// is stripped before slugging. Returns "" when nothing usable remains; the
// picture's token is used in URLs instead.
func SeoFilename(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return ""
	}

	if ext := filepath.Ext(name); ext != "" && len(ext) <= 5 && len(ext) < len(name) {
		name = strings.TrimSuffix(name, ext)
	}

	return slug.Make(name)
}

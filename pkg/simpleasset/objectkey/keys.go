// Package objectkey generates blob store keys for primary uploads and their
// derived artifacts.
package objectkey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// ThumbnailPrefix is the namespace under which all thumbnail keys live.
const ThumbnailPrefix = "thumbnails/"

// NewPrimaryKey generates a unique key for an uploaded file: a millisecond
// timestamp plus random hex, keeping the original extension.
func NewPrimaryKey(originalName string) string {
	buf := make([]byte, 8)
	rand.Read(buf)
	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
	if ext := path.Ext(originalName); ext != "" {
		key += strings.ToLower(ext)
	}
	return key
}

// ThumbnailKey derives the thumbnail key for a primary key: the extension is
// replaced with .jpg and the key is placed under the thumbnails namespace.
// The mapping is deterministic and collision-free per primary key.
func ThumbnailKey(primaryKey string) string {
	base := primaryKey
	if ext := path.Ext(primaryKey); ext != "" {
		base = strings.TrimSuffix(primaryKey, ext)
	}
	return ThumbnailPrefix + base + ".jpg"
}

package sqlite

import (
	"crypto/rand"
	"encoding/hex"

	"mediastore/internal/storage"
)

func genHash() string {
	raw := make([]byte, 32)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

func genToken() string {
	raw := make([]byte, 16)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

func makeTestPicture(seoFilename string) *storage.Picture {
	return &storage.Picture{
		MimeType:    "image/png",
		SeoFilename: seoFilename,
		Token:       genToken(),
		Hash:        genHash(),
		Size:        1234,
		Width:       800,
		Height:      600,
		IsNew:       true,
	}
}

package moderation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/postsieve/postsieve/internal/database/types"
	"github.com/postsieve/postsieve/internal/storage"
)

// imageExtensions covers the formats the scoring service accepts. Anything
// else is skipped rather than scored.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// isImageAttachment decides whether a post's attachment should be sent
// through image scoring. The declared MIME type wins when present; without
// one the file extension is consulted, and as a last resort the content is
// sniffed. Videos, documents, and other non-image attachments are skipped.
func isImageAttachment(ctx context.Context, st storage.Storage, post *types.Post) (bool, error) {
	if post.AttachmentMime != "" {
		return strings.HasPrefix(post.AttachmentMime, "image/"), nil
	}

	if ext := strings.ToLower(filepath.Ext(post.AttachmentPath)); ext != "" {
		_, ok := imageExtensions[ext]
		return ok, nil
	}

	rc, err := st.Open(ctx, post.AttachmentPath)
	if err != nil {
		return false, fmt.Errorf("failed to open attachment for sniffing: %w", err)
	}
	defer rc.Close()

	mtype, err := mimetype.DetectReader(rc)
	if err != nil {
		return false, fmt.Errorf("failed to sniff attachment type: %w", err)
	}

	return strings.HasPrefix(mtype.String(), "image/"), nil
}

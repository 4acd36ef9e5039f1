package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/randalmurphal/bimcollab/internal/config"
	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/util"
)

// thumbnailStore keeps the first viewpoint screenshot of an imported issue
// under .bcf/thumbnails, at the issue's placeholder path. Resizing is left to
// whatever serves the file.
type thumbnailStore struct {
	root string
}

// pendingThumbnail is a screenshot waiting for its issue to be stored.
type pendingThumbnail struct {
	issue       *issue.Issue
	placeholder string
	rel         string
	data        []byte
}

// assign points each issue's thumbnail at its file under .bcf/thumbnails and
// returns the screenshots to write. Nothing touches the disk yet.
func (s thumbnailStore) assign(issues []*issue.Issue) []pendingThumbnail {
	var out []pendingThumbnail
	for _, iss := range issues {
		if iss.Thumbnail == nil || iss.Thumbnail.Ref == "" {
			continue
		}
		shot := screenshotOf(iss, iss.Thumbnail)
		if len(shot) == 0 {
			continue
		}
		placeholder := iss.Thumbnail.Ref
		rel := filepath.ToSlash(filepath.Join(config.BcfDir, "thumbnails", filepath.FromSlash(iss.Thumbnail.Ref)))
		iss.Thumbnail.Ref = rel
		out = append(out, pendingThumbnail{issue: iss, placeholder: placeholder, rel: rel, data: shot})
	}
	return out
}

// write stores the screenshots. A failed write does not stop the others.
func (s thumbnailStore) write(ctx context.Context, pending []pendingThumbnail) []error {
	var errs []error
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		dst := filepath.Join(s.root, filepath.FromSlash(p.rel))
		if err := util.AtomicWriteFile(dst, p.data, 0644); err != nil {
			errs = append(errs, fmt.Errorf("write thumbnail of %s: %w", p.issue.ID, err))
		}
	}
	return errs
}

func screenshotOf(iss *issue.Issue, req *issue.ThumbnailRequest) []byte {
	for _, vp := range iss.Viewpoints {
		if vp != nil && vp.GUID == req.ViewpointGUID {
			return vp.Screenshot
		}
	}
	return nil
}

// importStore is the part of the store an import writes to.
type importStore interface {
	PersistImported(ctx context.Context, namespace, model string, issues []*issue.Issue) error
}

// persistImported stores the issues and only then writes their thumbnails.
// Thumbnail write failures are returned separately; they do not undo the
// import.
func persistImported(ctx context.Context, store importStore, thumbs thumbnailStore, namespace, model string, issues []*issue.Issue) ([]error, error) {
	pending := thumbs.assign(issues)
	if err := store.PersistImported(ctx, namespace, model, issues); err != nil {
		for _, p := range pending {
			p.issue.Thumbnail.Ref = p.placeholder
		}
		return nil, err
	}
	return thumbs.write(ctx, pending), nil
}

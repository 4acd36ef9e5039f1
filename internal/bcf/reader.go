package bcf

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/issue"
)

// DefaultMaxEntrySize caps a single archive entry (100MB).
const DefaultMaxEntrySize int64 = 100 << 20

// ImportOptions configure one import.
type ImportOptions struct {
	Namespace    string
	DefaultModel string
	// Federated resolves each component through IDToModel instead of
	// assigning it to DefaultModel.
	Federated bool
	IDToModel map[string]string
	// Unit is the display unit imported geometry is converted to.
	Unit string
	// User owns the import marker comment.
	User string
}

// ImportResult is the outcome of an import. Failures are topic folders that
// were dropped; Warnings are viewpoints or thumbnails dropped from otherwise
// imported issues.
type ImportResult struct {
	Issues     []*issue.Issue
	Failures   []ItemFailure
	Warnings   []ItemFailure
	Unresolved []string
	// Ignored lists entries outside any GUID folder or matched by an ignore
	// pattern.
	Ignored []string
}

// Thumbnailer produces a thumbnail reference from a screenshot. Image
// processing lives outside the codec.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, iss *issue.Issue, screenshot []byte) (string, error)
}

// Reader imports BCF archives.
type Reader struct {
	logger       *slog.Logger
	concurrency  int
	maxEntrySize int64
	ignore       []string
	thumbs       Thumbnailer
	now          func() time.Time
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// WithReaderConcurrency bounds how many topic folders are parsed at once.
func WithReaderConcurrency(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMaxEntrySize caps the size of a single entry. Larger entries abort the
// import.
func WithMaxEntrySize(n int64) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxEntrySize = n
		}
	}
}

// WithIgnore skips entries whose path matches any of the doublestar patterns.
func WithIgnore(patterns ...string) ReaderOption {
	return func(r *Reader) { r.ignore = append(r.ignore, patterns...) }
}

// WithThumbnailer sets the thumbnail collaborator.
func WithThumbnailer(t Thumbnailer) ReaderOption {
	return func(r *Reader) { r.thumbs = t }
}

// WithClock overrides the time source for import comments.
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) { r.now = now }
}

// NewReader creates a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		logger:       slog.Default(),
		concurrency:  runtime.GOMAXPROCS(0),
		maxEntrySize: DefaultMaxEntrySize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ThumbnailPlaceholder is the reference an imported issue points at until
// its thumbnail has been generated.
func ThumbnailPlaceholder(namespace, model string, id uuid.UUID) string {
	return path.Join(namespace, model, "issues", id.String(), "thumbnail.png")
}

// ReadFile imports the archive at filename.
func (r *Reader) ReadFile(ctx context.Context, filename string, opts ImportOptions) (*ImportResult, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, bcferrors.ErrMalformedArchive(filename, err)
	}
	defer func() { _ = zr.Close() }()
	return r.read(ctx, &zr.Reader, filename, opts)
}

// Read imports an archive held in ra.
func (r *Reader) Read(ctx context.Context, ra io.ReaderAt, size int64, opts ImportOptions) (*ImportResult, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, bcferrors.ErrMalformedArchive("archive", err)
	}
	return r.read(ctx, zr, "archive", opts)
}

// folderFiles holds the raw entries of one topic folder keyed by full path.
type folderFiles struct {
	name  string
	id    uuid.UUID
	files map[string][]byte
}

type parsedFolder struct {
	iss        *issue.Issue
	warnings   []ItemFailure
	unresolved []string
	err        error
}

func (r *Reader) read(ctx context.Context, zr *zip.Reader, source string, opts ImportOptions) (*ImportResult, error) {
	res := &ImportResult{}

	// Drain every entry before parsing: a markup may reference files that
	// appear later in the archive.
	folders, err := r.drain(ctx, zr, source, res)
	if err != nil {
		return nil, err
	}

	scale := UnitScale(opts.Unit)
	parsed := make([]parsedFolder, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, f := range folders {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i] = r.parseFolder(gctx, f, opts, scale)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for i, p := range parsed {
		res.Warnings = append(res.Warnings, p.warnings...)
		for _, id := range p.unresolved {
			if !seen[id] {
				seen[id] = true
				res.Unresolved = append(res.Unresolved, id)
			}
		}
		if p.err != nil {
			r.logger.Warn("skipping topic", "folder", folders[i].name, "error", p.err)
			res.Failures = append(res.Failures, ItemFailure{ID: folders[i].name, Err: p.err})
			continue
		}
		res.Issues = append(res.Issues, p.iss)
	}
	r.logger.Debug("bcf import complete",
		"source", source,
		"issues", len(res.Issues),
		"failed", len(res.Failures),
		"warnings", len(res.Warnings),
		"unresolved", len(res.Unresolved),
	)
	return res, nil
}

// drain reads all entries into per-folder tables in stream order.
func (r *Reader) drain(ctx context.Context, zr *zip.Reader, source string, res *ImportResult) ([]*folderFiles, error) {
	var order []*folderFiles
	byName := make(map[string]*folderFiles)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if strings.HasSuffix(name, "/") {
			continue
		}
		folder, _, ok := strings.Cut(name, "/")
		if !ok {
			if name != VersionEntry {
				res.Ignored = append(res.Ignored, name)
			}
			continue
		}
		id, err := uuid.Parse(folder)
		if err != nil || r.ignored(name) {
			res.Ignored = append(res.Ignored, name)
			continue
		}

		data, err := r.readEntry(f)
		if err != nil {
			return nil, bcferrors.ErrMalformedArchive(source, fmt.Errorf("%s: %w", name, err))
		}
		ff, exists := byName[folder]
		if !exists {
			ff = &folderFiles{name: folder, id: id, files: make(map[string][]byte)}
			byName[folder] = ff
			order = append(order, ff)
		}
		ff.files[name] = data
	}
	return order, nil
}

func (r *Reader) ignored(name string) bool {
	for _, pattern := range r.ignore {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (r *Reader) readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(r.maxEntrySize) {
		return nil, fmt.Errorf("entry is %d bytes, limit %d", f.UncompressedSize64, r.maxEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, r.maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxEntrySize {
		return nil, fmt.Errorf("entry exceeds limit %d", r.maxEntrySize)
	}
	return data, nil
}

// parseFolder rebuilds one issue. A missing or unreadable markup, or a topic
// that could not be stored, fails the folder; bad viewpoints are dropped with
// a warning.
func (r *Reader) parseFolder(ctx context.Context, f *folderFiles, opts ImportOptions, scale float64) parsedFolder {
	var out parsedFolder
	markupPath := f.name + "/" + MarkupEntry
	data, ok := f.files[markupPath]
	if !ok {
		out.err = bcferrors.ErrMalformedMarkup(f.name, fmt.Errorf("missing %s", MarkupEntry))
		return out
	}
	iss, refs, err := ParseMarkup(data, ParseOptions{FolderGUID: f.id, User: opts.User, Now: r.now})
	if err != nil {
		out.err = bcferrors.ErrMalformedMarkup(f.name, err)
		return out
	}
	if len(refs) == 0 {
		refs = r.fallbackRefs(f)
	}

	warn := func(file string, err error) {
		r.logger.Warn("dropping viewpoint", "folder", f.name, "file", file, "error", err)
		out.warnings = append(out.warnings, ItemFailure{ID: f.name + "/" + file, Err: err})
	}

	seen := make(map[uuid.UUID]bool)
	for _, ref := range refs {
		if ref.Viewpoint == "" {
			continue
		}
		vpPath, inside := folderPath(f.name, ref.Viewpoint)
		if !inside {
			warn(ref.Viewpoint, bcferrors.ErrMalformedVisualization(vpPath, fmt.Errorf("reference leaves topic folder")))
			continue
		}
		raw, ok := f.files[vpPath]
		if !ok {
			warn(ref.Viewpoint, bcferrors.ErrMalformedVisualization(vpPath, fmt.Errorf("file not in archive")))
			continue
		}
		vd, err := ParseVisualization(raw, scale)
		if err != nil {
			warn(ref.Viewpoint, bcferrors.ErrMalformedVisualization(vpPath, err))
			continue
		}
		vp := vd.Viewpoint
		if vp.GUID == uuid.Nil {
			vp.GUID = ref.GUID
		}
		if seen[vp.GUID] {
			warn(ref.Viewpoint, bcferrors.ErrMalformedVisualization(vpPath, fmt.Errorf("duplicate viewpoint %s", vp.GUID)))
			continue
		}
		seen[vp.GUID] = true
		if ref.Snapshot != "" {
			if snapPath, inside := folderPath(f.name, ref.Snapshot); inside {
				vp.Screenshot = f.files[snapPath]
			} else {
				r.logger.Warn("dropping snapshot", "folder", f.name, "file", ref.Snapshot)
				out.warnings = append(out.warnings, ItemFailure{
					ID:  f.name + "/" + ref.Snapshot,
					Err: bcferrors.ErrMalformedVisualization(snapPath, fmt.Errorf("reference leaves topic folder")),
				})
			}
		}

		groups := ResolveGroups(vd.Components, ResolveOptions{
			IssueName:    iss.Name,
			Namespace:    opts.Namespace,
			DefaultModel: opts.DefaultModel,
			IDToModel:    opts.IDToModel,
			Federated:    opts.Federated,
			Logger:       r.logger,
		})
		vp.HighlightedGroup = groups.Highlighted
		vp.HiddenGroup = groups.Hidden
		vp.ShownGroup = groups.Shown
		out.unresolved = append(out.unresolved, groups.Unresolved...)
		iss.Viewpoints = append(iss.Viewpoints, vp)
	}

	// Reject here what the store would refuse, so one bad topic cannot
	// abort the whole import.
	if err := iss.Validate().ToError(); err != nil {
		out.err = bcferrors.ErrMalformedMarkup(f.name, err)
		out.warnings = nil
		out.unresolved = nil
		return out
	}

	if len(iss.Viewpoints) > 0 && len(iss.Viewpoints[0].Screenshot) > 0 {
		first := iss.Viewpoints[0]
		iss.Thumbnail = &issue.ThumbnailRequest{
			Ref:           ThumbnailPlaceholder(opts.Namespace, opts.DefaultModel, iss.ID),
			ViewpointGUID: first.GUID,
		}
		if r.thumbs != nil {
			if ref, err := r.thumbs.Thumbnail(ctx, iss, first.Screenshot); err != nil {
				warn(SnapshotFileName(0), err)
			} else if ref != "" {
				iss.Thumbnail.Ref = ref
			}
		}
	}
	out.iss = iss
	return out
}

// folderPath resolves a markup-relative reference and reports whether it
// stays inside the topic folder.
func folderPath(folder, ref string) (string, bool) {
	p := path.Join(folder, ref)
	return p, strings.HasPrefix(p, folder+"/")
}

// fallbackRefs covers markups that list no Viewpoints element.
func (r *Reader) fallbackRefs(f *folderFiles) []ViewpointRef {
	name := ViewpointFileName(0)
	if _, ok := f.files[f.name+"/"+name]; !ok {
		return nil
	}
	ref := ViewpointRef{GUID: uuid.New(), Viewpoint: name}
	if _, ok := f.files[f.name+"/"+SnapshotFileName(0)]; ok {
		ref.Snapshot = SnapshotFileName(0)
	}
	return []ViewpointRef{ref}
}

package bcf

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

// Archive entry names.
const (
	VersionEntry = "bcf.version"
	MarkupEntry  = "markup.bcf"
	// Version is the BCF version written to bcf.version.
	Version = "2.1"
)

// ItemFailure reports one issue or topic folder that could not be processed.
// The rest of the operation is unaffected.
type ItemFailure struct {
	ID  string
	Err error
}

func (f ItemFailure) Error() string {
	return f.ID + ": " + f.Err.Error()
}

func (f ItemFailure) Unwrap() error { return f.Err }

// ExportOptions configure one export.
type ExportOptions struct {
	// Unit is the display unit of the model (mm, cm, dm, m, ft).
	Unit string
	// Namespace and Model locate the groups referenced by viewpoints unless
	// an issue carries its own Origin.
	Namespace string
	Model     string
}

// ExportResult summarizes an export.
type ExportResult struct {
	Written  []uuid.UUID
	Failures []ItemFailure
}

// Writer streams issues into a BCF archive.
type Writer struct {
	groups      GroupSource
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithGroupSource sets where viewpoint group ids are resolved. Without one,
// viewpoints are exported without component state.
func WithGroupSource(src GroupSource) WriterOption {
	return func(w *Writer) { w.groups = src }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithWriterConcurrency bounds how many issues are encoded at once.
func WithWriterConcurrency(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// NewWriter creates a Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		logger:      slog.Default(),
		concurrency: runtime.GOMAXPROCS(0),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type entry struct {
	name  string
	data  []byte
	store bool
}

type builtIssue struct {
	id      uuid.UUID
	entries []entry
	err     error
}

// Write encodes issues into a BCF archive on out. Issues are encoded
// concurrently but appended in input order, each issue's entries contiguous.
// An issue that fails to encode is skipped and reported in the result; a
// failure writing the archive itself is returned as an error.
func (w *Writer) Write(ctx context.Context, out io.Writer, issues []*issue.Issue, opts ExportOptions) (*ExportResult, error) {
	scale := UnitScale(opts.Unit)
	var cache *groupCache
	if w.groups != nil {
		cache = newGroupCache(w.groups)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]builtIssue, len(issues))
	ready := make([]chan struct{}, len(issues))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, iss := range issues {
			g.Go(func() error {
				defer close(ready[i])
				if err := ctx.Err(); err != nil {
					slots[i].err = err
					return nil
				}
				slots[i] = w.build(ctx, iss, opts, scale, cache)
				return nil
			})
		}
	}()
	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	zw := zip.NewWriter(out)
	if err := w.writeEntry(zw, entry{name: VersionEntry, data: versionXML}); err != nil {
		return nil, fmt.Errorf("write %s: %w", VersionEntry, err)
	}

	res := &ExportResult{}
	for i := range issues {
		select {
		case <-ready[i]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		built := slots[i]
		if built.err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.logger.Warn("skipping issue", "issue", built.id, "error", built.err)
			res.Failures = append(res.Failures, ItemFailure{ID: built.id.String(), Err: built.err})
			continue
		}
		for _, e := range built.entries {
			if err := w.writeEntry(zw, e); err != nil {
				return nil, fmt.Errorf("write %s: %w", e.name, err)
			}
		}
		res.Written = append(res.Written, built.id)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	w.logger.Debug("bcf export complete", "written", len(res.Written), "failed", len(res.Failures))
	return res, nil
}

func (w *Writer) writeEntry(zw *zip.Writer, e entry) error {
	hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: w.now()}
	if e.store {
		hdr.Method = zip.Store
	}
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = fw.Write(e.data)
	return err
}

// build encodes one issue into its archive entries.
func (w *Writer) build(ctx context.Context, iss *issue.Issue, opts ExportOptions, scale float64, cache *groupCache) builtIssue {
	if iss == nil {
		return builtIssue{err: bcferrors.ErrEncoding("", fmt.Errorf("nil issue"))}
	}
	out := builtIssue{id: iss.ID}
	fail := func(err error) builtIssue {
		out.err = bcferrors.ErrEncoding(iss.ID.String(), err)
		return out
	}
	if err := iss.Validate().ToError(); err != nil {
		return fail(err)
	}

	namespace, model := opts.Namespace, opts.Model
	if iss.Origin != nil {
		namespace, model = iss.Origin.Namespace, iss.Origin.Model
	}
	folder := iss.ID.String() + "/"

	var refs []ViewpointRef
	var files []entry
	snapshots := 0
	for n, vp := range iss.Viewpoints {
		ref := ViewpointRef{GUID: vp.GUID, Viewpoint: ViewpointFileName(n)}
		if len(vp.Screenshot) > 0 {
			ref.Snapshot = SnapshotFileName(snapshots)
			snapshots++
		}

		groups := w.exportGroups(ctx, iss, vp, namespace, model, cache)
		doc, err := BuildVisualization(vp, scale, groups)
		if err != nil {
			return fail(fmt.Errorf("viewpoint %s: %w", vp.GUID, err))
		}
		data, err := xmltree.Marshal(doc, xmltree.DefaultOptions)
		if err != nil {
			return fail(fmt.Errorf("viewpoint %s: %w", vp.GUID, err))
		}
		files = append(files, entry{name: folder + ref.Viewpoint, data: data})
		if ref.Snapshot != "" {
			files = append(files, entry{name: folder + ref.Snapshot, data: vp.Screenshot, store: true})
		}
		refs = append(refs, ref)
	}

	doc, err := BuildMarkup(iss, refs)
	if err != nil {
		return fail(err)
	}
	data, err := xmltree.Marshal(doc, xmltree.DefaultOptions)
	if err != nil {
		return fail(err)
	}
	out.entries = append([]entry{{name: folder + MarkupEntry, data: data}}, files...)
	return out
}

// exportGroups loads the groups a viewpoint references. A viewpoint still
// carrying group data from an import uses it as is. A group that cannot be
// loaded is left out of the viewpoint; it does not fail the issue.
func (w *Writer) exportGroups(ctx context.Context, iss *issue.Issue, vp *issue.Viewpoint, namespace, model string, cache *groupCache) ExportGroups {
	var groups ExportGroups
	load := func(id string, inline *issue.Group) *issue.Group {
		if id == "" {
			return inline
		}
		if cache == nil {
			w.logger.Debug("no group source, dropping group reference", "issue", iss.ID, "group", id)
			return nil
		}
		g, err := cache.Get(ctx, namespace, model, id)
		if err != nil {
			w.logger.Warn("could not load group", "issue", iss.ID, "viewpoint", vp.GUID, "group", id, "error", err)
			return nil
		}
		return g
	}
	groups.Highlighted = load(vp.HighlightedGroupID, vp.HighlightedGroup)
	groups.Hidden = load(vp.HiddenGroupID, vp.HiddenGroup)
	groups.Shown = load(vp.ShownGroupID, vp.ShownGroup)
	return groups
}

// versionXML is the bcf.version entry, the same for every archive.
var versionXML = mustMarshal(versionDocument())

func versionDocument() *xmltree.Element {
	doc := xmltree.New("Version").
		SetAttr("VersionId", Version).
		SetAttr("xsi:noNamespaceSchemaLocation", "version.xsd").
		SetAttr("xmlns:xsi", xsiNS)
	doc.AddLeaf("DetailedVersion", Version)
	return doc
}

// mustMarshal is for documents fixed at compile time.
func mustMarshal(el *xmltree.Element) []byte {
	data, err := xmltree.Marshal(el, xmltree.DefaultOptions)
	if err != nil {
		panic(fmt.Sprintf("bcf: marshal %s: %v", el.Name, err))
	}
	return data
}

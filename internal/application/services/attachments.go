package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/taskmaster/kanban/internal/domain/entities"
)

const dataURLBase64 = ";base64,"

// FileSource is a raw file waiting to be turned into an attachment.
// Size and MimeType may be zero; they are then derived from the content.
type FileSource struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// FileFromBytes wraps in-memory content as a FileSource
func FileFromBytes(name, mimeType string, content []byte) FileSource {
	return FileSource{
		Name:     name,
		Size:     int64(len(content)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// FileFromPath stats path and returns a FileSource that reads it lazily
func FileFromPath(path string) (FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileSource{}, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return FileSource{}, fmt.Errorf("attachment %q is a directory", path)
	}
	return FileSource{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Decode is the pending result of reading one file into an attachment.
type Decode struct {
	name string
	size int64
	done chan struct{}
	att  entities.Attachment
	err  error
}

// DecodeFile starts reading src in the background. The attachment is only
// available once Done is closed.
func DecodeFile(ctx context.Context, src FileSource) *Decode {
	d := &Decode{name: src.Name, size: src.Size, done: make(chan struct{})}
	go func() {
		defer close(d.done)
		d.att, d.err = readAttachment(ctx, src)
	}()
	return d
}

// Done is closed when the decode has finished, successfully or not.
func (d *Decode) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the decode finishes or ctx is cancelled.
func (d *Decode) Wait(ctx context.Context) (entities.Attachment, error) {
	select {
	case <-d.done:
		return d.att, d.err
	case <-ctx.Done():
		return entities.Attachment{}, ctx.Err()
	}
}

func readAttachment(ctx context.Context, src FileSource) (entities.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return entities.Attachment{}, err
	}
	if src.Open == nil {
		return entities.Attachment{}, fmt.Errorf("%w: %s: no content", entities.ErrDecodeFailed, src.Name)
	}

	rc, err := src.Open()
	if err != nil {
		return entities.Attachment{}, fmt.Errorf("%w: %s: %v", entities.ErrDecodeFailed, src.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return entities.Attachment{}, fmt.Errorf("%w: %s: %v", entities.ErrDecodeFailed, src.Name, err)
	}

	size := src.Size
	if size <= 0 {
		size = int64(len(content))
	}
	return EncodeAttachment(src.Name, size, src.MimeType, content), nil
}

// EncodeAttachment builds an attachment whose data is a base64 data URL.
func EncodeAttachment(name string, size int64, mimeType string, content []byte) entities.Attachment {
	mt := ResolveMimeType(name, mimeType, content)
	return entities.Attachment{
		Name:     name,
		Size:     size,
		MimeType: mt,
		Data:     "data:" + mt + dataURLBase64 + base64.StdEncoding.EncodeToString(content),
	}
}

// ResolveMimeType prefers the declared type, then the file extension, then
// content sniffing.
func ResolveMimeType(name, declared string, content []byte) string {
	if mt := baseMimeType(declared); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if mt := baseMimeType(mime.TypeByExtension(filepath.Ext(name))); mt != "" {
		return mt
	}
	return baseMimeType(mimetype.Detect(content).String())
}

func baseMimeType(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return ""
	}
	return mt
}

// DecodeDataURL splits a stored attachment payload into its MIME type and bytes.
func DecodeDataURL(data string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(data, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URL", entities.ErrDecodeFailed)
	}
	mt, payload, ok := strings.Cut(rest, dataURLBase64)
	if !ok {
		return "", nil, fmt.Errorf("%w: data URL is not base64", entities.ErrDecodeFailed)
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", entities.ErrDecodeFailed, err)
	}
	if mt == "" {
		mt = "application/octet-stream"
	}
	return mt, content, nil
}

type fileKey struct {
	name string
	size int64
}

// Batch stages the files of one create or edit submission. A file whose
// name and size match one already staged is skipped.
type Batch struct {
	mu      sync.Mutex
	ctx     context.Context
	pending []*Decode
}

// NewBatch creates an empty batch; decodes started by Add run under ctx
func NewBatch(ctx context.Context) *Batch {
	return &Batch{ctx: ctx}
}

// Add starts decoding src and reports whether it was staged.
func (b *Batch) Add(src FileSource) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := fileKey{name: src.Name, size: src.Size}
	for _, d := range b.pending {
		if (fileKey{name: d.name, size: d.size}) == key {
			return false
		}
	}
	b.pending = append(b.pending, DecodeFile(b.ctx, src))
	return true
}

// Len returns the number of staged files, decoded or not.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Remove unstages the file at index.
func (b *Batch) Remove(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.pending) {
		return &entities.IndexError{Index: index, Len: len(b.pending)}
	}
	b.pending = append(b.pending[:index:index], b.pending[index+1:]...)
	return nil
}

// Attachments returns the files decoded so far, in the order they were added.
// Files still decoding or that failed are left out.
func (b *Batch) Attachments() []entities.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]entities.Attachment, 0, len(b.pending))
	for _, d := range b.pending {
		select {
		case <-d.done:
			if d.err == nil {
				out = append(out, d.att)
			}
		default:
		}
	}
	return out
}

// Wait blocks until every staged file has decoded and returns them in add
// order. The first decode failure is returned as the error.
func (b *Batch) Wait(ctx context.Context) ([]entities.Attachment, error) {
	b.mu.Lock()
	pending := make([]*Decode, len(b.pending))
	copy(pending, b.pending)
	b.mu.Unlock()

	results := make([]entities.Attachment, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range pending {
		i, d := i, d
		g.Go(func() error {
			att, err := d.Wait(gctx)
			if err != nil {
				return err
			}
			results[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Reset drops every staged file.
func (b *Batch) Reset() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}

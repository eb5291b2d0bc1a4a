// Package assets loads receipt images chosen through an image picker and
// places them into a pending draft.
package assets

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/metrics"
)

// DefaultMaxBytes caps a receipt image at 10 MiB.
const DefaultMaxBytes = 10 << 20

// Picker resolves an opaque handle returned by an image picker into bytes.
type Picker interface {
	LoadBytes(ctx context.Context, handle string) ([]byte, error)
}

// Target receives loaded image bytes. *ledger.Draft satisfies it.
type Target interface {
	SetReceiptImage(data []byte)
}

// FilePicker treats handles as file paths, optionally relative to Root.
type FilePicker struct {
	Root     string
	MaxBytes int64
}

// NewFilePicker creates a FilePicker rooted at root. A non-positive maxBytes
// means DefaultMaxBytes.
func NewFilePicker(root string, maxBytes int64) *FilePicker {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &FilePicker{Root: root, MaxBytes: maxBytes}
}

// LoadBytes implements Picker.
func (p *FilePicker) LoadBytes(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := p.resolve(handle)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("receipt image", handle)
		}
		return nil, fmt.Errorf("failed to open receipt image: %w", err)
	}
	defer f.Close()

	limit := p.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.Validation("receipt_image", handle,
			fmt.Errorf("image exceeds %d bytes", limit))
	}
	if len(data) == 0 {
		return nil, apperrors.Validation("receipt_image", handle, fmt.Errorf("image is empty"))
	}
	return data, nil
}

func (p *FilePicker) resolve(handle string) (string, error) {
	if handle == "" {
		return "", apperrors.Validation("receipt_image", handle, fmt.Errorf("no image selected"))
	}
	if p.Root == "" {
		return handle, nil
	}
	path := filepath.Join(p.Root, handle)
	rel, err := filepath.Rel(p.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.Validation("receipt_image", handle, fmt.Errorf("path escapes picker root"))
	}
	return path, nil
}

// Result reports the outcome of one load.
type Result struct {
	Handle string
	Size   int
	Digest string // hex BLAKE2b-256 of the bytes
	Err    error
}

// Loader fetches picker selections asynchronously.
type Loader struct {
	picker  Picker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics records load results on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// NewLoader creates a Loader over picker.
func NewLoader(picker Picker, opts ...Option) *Loader {
	l := &Loader{picker: picker, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches handle in the background. On success the bytes are written to
// target; on failure target is left untouched. The returned channel yields
// exactly one Result. When several loads target the same draft, the one that
// completes last wins.
func (l *Loader) Load(ctx context.Context, handle string, target Target) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- l.load(ctx, handle, target)
	}()
	return ch
}

func (l *Loader) load(ctx context.Context, handle string, target Target) Result {
	data, err := l.picker.LoadBytes(ctx, handle)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		l.metrics.ReceiptLoaded("error")
		l.logger.Warn("Receipt image load failed", "handle", handle, "error", err)
		return Result{Handle: handle, Err: err}
	}

	target.SetReceiptImage(data)

	l.metrics.ReceiptLoaded("ok")
	l.logger.Debug("Receipt image loaded", "handle", handle, "size", len(data))
	return Result{
		Handle: handle,
		Size:   len(data),
		Digest: Digest(data),
	}
}

// Digest returns the hex BLAKE2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

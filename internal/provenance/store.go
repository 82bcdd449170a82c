package provenance

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/textutil"
	"folio/internal/workitem"
)

const (
	defaultLockPoll = 25 * time.Millisecond
	documentMode    = 0o644
)

// Store reads and mutates provenance documents under a root directory.
type Store struct {
	root     string
	logger   *slog.Logger
	now      func() time.Time
	lockPoll time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for log entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a Store rooted at root.
func NewStore(root string, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Store{
		root:     root,
		logger:   logging.NewComponentLogger(logger, "provenance"),
		now:      time.Now,
		lockPoll: defaultLockPoll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory holding all documents.
func (s *Store) Root() string {
	return s.root
}

// DocumentPath returns the file path for a case document.
func (s *Store) DocumentPath(shelfmark, index string) string {
	return filepath.Join(s.root, textutil.DocumentID(shelfmark), textutil.DocumentID(index)+".xml")
}

// GetOrCreate returns the document for a case, persisting a fresh skeleton
// when none exists or the existing file is unreadable. Calling it repeatedly
// yields the same document.
func (s *Store) GetOrCreate(ctx context.Context, shelfmark, index string) (*Document, error) {
	return s.mutate(ctx, "get_or_create", shelfmark, index, nil)
}

// Update runs fn against the locked document and persists the result. If fn
// returns an error nothing is written.
func (s *Store) Update(ctx context.Context, shelfmark, index string, fn func(*Document) error) error {
	if fn == nil {
		return errors.New("provenance update: nil mutation")
	}
	_, err := s.mutate(ctx, "update", shelfmark, index, fn)
	return err
}

// Load reads a document without creating it. exists is false when the case
// has no document yet.
func (s *Store) Load(ctx context.Context, shelfmark, index string) (*Document, bool, error) {
	path := s.DocumentPath(shelfmark, index)
	if !fileutil.IsFile(path) {
		return NewDocument(shelfmark, index), false, nil
	}
	lock, err := s.acquire(ctx, path, false)
	if err != nil {
		return nil, false, s.wrap("load", path, err)
	}
	defer s.release(lock)

	doc, state, err := readDocument(path, shelfmark, index)
	if err != nil {
		return nil, false, s.wrap("load", path, err)
	}
	if state == stateCorrupt {
		s.logger.Warn("provenance document unreadable; treating as empty",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "provenance_corrupt"),
		)
		return doc, false, nil
	}
	return doc, state == stateOK, nil
}

// AddItem records a page sequence with an optional title and origin.
func (s *Store) AddItem(ctx context.Context, c workitem.Case, title, origin string) error {
	return s.Update(ctx, c.Shelfmark, c.Index, func(d *Document) error {
		d.AddItem(c.Sequence, title, origin)
		return nil
	})
}

// SetTitle sets the title of a page sequence.
func (s *Store) SetTitle(ctx context.Context, c workitem.Case, title string) error {
	return s.Update(ctx, c.Shelfmark, c.Index, func(d *Document) error {
		d.SetTitle(c.Sequence, title)
		return nil
	})
}

// SetOrigin sets the origin image path of a page sequence.
func (s *Store) SetOrigin(ctx context.Context, c workitem.Case, origin string) error {
	return s.Update(ctx, c.Shelfmark, c.Index, func(d *Document) error {
		d.SetOrigin(c.Sequence, origin)
		return nil
	})
}

// AddImage appends an image artifact to a page sequence.
func (s *Store) AddImage(ctx context.Context, c workitem.Case, imageType, path string) error {
	return s.Update(ctx, c.Shelfmark, c.Index, func(d *Document) error {
		d.AddImage(c.Sequence, imageType, path)
		return nil
	})
}

// AddOCR appends an OCR artifact to a page sequence.
func (s *Store) AddOCR(ctx context.Context, c workitem.Case, ocrType, language, path string) error {
	return s.Update(ctx, c.Shelfmark, c.Index, func(d *Document) error {
		d.AddOCR(c.Sequence, ocrType, language, path)
		return nil
	})
}

// AppendLog appends a timestamped event to a page sequence.
func (s *Store) AppendLog(ctx context.Context, c workitem.Case, process, status string) error {
	return s.Update(ctx, c.Shelfmark, c.Index, func(d *Document) error {
		d.AppendLog(c.Sequence, process, status, s.now())
		return nil
	})
}

// Image returns the latest path of an image type for a page sequence.
func (s *Store) Image(ctx context.Context, c workitem.Case, imageType string) (string, bool, error) {
	doc, _, err := s.Load(ctx, c.Shelfmark, c.Index)
	if err != nil {
		return "", false, err
	}
	path, ok := doc.Image(c.Sequence, imageType)
	return path, ok, nil
}

// Origin returns the origin image path of a page sequence.
func (s *Store) Origin(ctx context.Context, c workitem.Case) (string, bool, error) {
	doc, _, err := s.Load(ctx, c.Shelfmark, c.Index)
	if err != nil {
		return "", false, err
	}
	path, ok := doc.Origin(c.Sequence)
	return path, ok, nil
}

func (s *Store) mutate(ctx context.Context, op, shelfmark, index string, fn func(*Document) error) (*Document, error) {
	path := s.DocumentPath(shelfmark, index)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, s.wrap(op, path, fmt.Errorf("create document directory: %w", err))
	}
	lock, err := s.acquire(ctx, path, true)
	if err != nil {
		return nil, s.wrap(op, path, err)
	}
	defer s.release(lock)

	doc, state, err := readDocument(path, shelfmark, index)
	if err != nil {
		return nil, s.wrap(op, path, err)
	}
	if state == stateCorrupt {
		backup := path + ".corrupt"
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, s.wrap(op, path, fmt.Errorf("set aside corrupt document: %w", renameErr))
		}
		s.logger.Warn("provenance document unreadable; regenerated from skeleton",
			logging.String("path", path),
			logging.String("backup", backup),
			logging.String(logging.FieldEventType, "provenance_corrupt"),
			logging.String(logging.FieldErrorHint, "inspect the .corrupt file and merge entries by hand if needed"),
		)
	}

	if fn != nil {
		if err := fn(doc); err != nil {
			return nil, err
		}
	} else if state == stateOK {
		return doc, nil
	}

	data, err := doc.marshal()
	if err != nil {
		return nil, s.wrap(op, path, fmt.Errorf("encode document: %w", err))
	}
	if err := fileutil.WriteFileAtomic(path, data, documentMode); err != nil {
		return nil, s.wrap(op, path, err)
	}
	return doc, nil
}

func (s *Store) acquire(ctx context.Context, path string, exclusive bool) (*flock.Flock, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	lock := flock.New(path + ".lock")
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = lock.TryLockContext(ctx, s.lockPoll)
	} else {
		ok, err = lock.TryRLockContext(ctx, s.lockPoll)
	}
	if err != nil {
		return nil, fmt.Errorf("lock document: %w", err)
	}
	if !ok {
		return nil, errors.New("lock document: not acquired")
	}
	return lock, nil
}

func (s *Store) release(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		s.logger.Warn("failed to release provenance lock",
			logging.String("lock", lock.Path()),
			logging.Error(err),
		)
	}
}

func (s *Store) wrap(op, path string, err error) error {
	return services.Wrap(services.ErrProvenanceWrite, "provenance", op, path, err)
}

type readState int

const (
	stateOK readState = iota
	stateMissing
	stateCorrupt
)

func readDocument(path, shelfmark, index string) (*Document, readState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewDocument(shelfmark, index), stateMissing, nil
	}
	if err != nil {
		return nil, stateMissing, fmt.Errorf("read document: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(shelfmark, index), stateMissing, nil
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return NewDocument(shelfmark, index), stateCorrupt, nil
	}
	doc.adoptLegacyTitles()
	if strings.TrimSpace(doc.Shelfmark) == "" {
		doc.Shelfmark = shelfmark
	}
	if strings.TrimSpace(doc.Index) == "" {
		doc.Index = index
	}
	return &doc, stateOK, nil
}

package blob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// FSStore keeps blobs under a directory on local disk.
type FSStore struct {
	Root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "profile"), 0o750); err != nil {
		return nil, oops.Code("BLOB_INIT_FAILED").With("root", root).Wrap(err)
	}
	return &FSStore{Root: root}, nil
}

func (s *FSStore) Put(ctx context.Context, body io.Reader) (string, error) {
	data, ref, _, err := readImage(body)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(s.Root, filepath.FromSlash(ref))
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", oops.Code("BLOB_PUT_FAILED").With("ref", ref).Wrap(err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", oops.Code("BLOB_PUT_FAILED").With("ref", ref).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return "", oops.Code("BLOB_PUT_FAILED").With("ref", ref).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", oops.Code("BLOB_PUT_FAILED").With("ref", ref).Wrap(err)
	}
	return ref, nil
}

func (s *FSStore) Open(ctx context.Context, ref string) (Object, error) {
	if !ValidRef(ref) {
		return Object{}, ErrInvalidRef
	}

	f, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(ref)))
	if errors.Is(err, fs.ErrNotExist) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, oops.Code("BLOB_OPEN_FAILED").With("ref", ref).Wrap(err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Object{}, oops.Code("BLOB_OPEN_FAILED").With("ref", ref).Wrap(err)
	}
	return Object{Body: f, ContentType: ContentTypeOf(ref), Size: info.Size()}, nil
}

func (s *FSStore) Delete(ctx context.Context, ref string) error {
	if !ValidRef(ref) {
		return ErrInvalidRef
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(ref)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("BLOB_DELETE_FAILED").With("ref", ref).Wrap(err)
	}
	return nil
}

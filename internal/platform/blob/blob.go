// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package blob stores operator avatars in an embedded BoltDB file and exposes
them under a public locator.

Layout:

  - Bucket "avatars" maps an object path to its bytes.
  - Bucket "avatar_types" maps the same path to its detected content type.

Object paths have the form "<owner>/<uuid>.<ext>", so an owner's objects
never collide with another's and a new upload never overwrites the old one.
*/
package blob

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
)

// MaxAvatarBytes is the largest accepted avatar image.
const MaxAvatarBytes = 2 << 20

var (
	bucketObjects = []byte("avatars")
	bucketTypes   = []byte("avatar_types")

	// extensions lists the accepted image content types.
	extensions = map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpg",
		"image/gif":  "gif",
		"image/webp": "webp",
	}
)

var (
	// ErrEmpty is returned when no bytes were supplied.
	ErrEmpty = apperr.ValidationError("Avatar is empty", apperr.FieldError{Field: "avatar", Message: "Must not be empty"})

	// ErrTooLarge is returned for avatars above [MaxAvatarBytes].
	ErrTooLarge = apperr.ValidationError("Avatar is too large", apperr.FieldError{Field: "avatar", Message: "Maximum size is 2 MiB"})

	// ErrUnsupportedType is returned when the bytes are not a supported image.
	ErrUnsupportedType = apperr.ValidationError("Avatar must be an image", apperr.FieldError{Field: "avatar", Message: "Supported formats: png, jpeg, gif, webp"})

	// ErrNotFound is returned by [Store.Open] for unknown paths.
	ErrNotFound = apperr.NotFound("Avatar")
)

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the bolt-backed avatar store.
type Store struct {
	db            *bolt.DB
	publicBaseURL string
}

/*
Open opens (or creates) the bolt file at path and ensures the buckets exist.

Parameters:
  - path: string (filesystem path of the bolt file)
  - publicBaseURL: string (prefix for public locators, without trailing slash)

Returns:
  - *Store: The ready store
  - error: Any failure opening the file
*/
func Open(path, publicBaseURL string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("blob_open_failed: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketObjects, bucketTypes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob_bucket_init_failed: %w", err)
	}

	return &Store{db: db, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Close releases the bolt file lock.
func (store *Store) Close() error {
	return store.db.Close()
}

/*
Put validates data as an image and stores it under a fresh path owned by owner.

Returns:
  - string: The stored object path
  - error: ErrEmpty, ErrTooLarge, ErrUnsupportedType, or a storage failure
*/
func (store *Store) Put(context context.Context, owner string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxAvatarBytes {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	extension, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	if err := context.Err(); err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/%s.%s", owner, uuid.NewString(), extension)

	err := store.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Put([]byte(path), data); err != nil {
			return err
		}
		return tx.Bucket(bucketTypes).Put([]byte(path), []byte(contentType))
	})
	if err != nil {
		return "", fmt.Errorf("blob_put_failed: %w", err)
	}

	return path, nil
}

// PublicLocator returns the public URL for path.
func (store *Store) PublicLocator(path string) string {
	segments := strings.Split(path, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}
	return store.publicBaseURL + "/storage/avatars/" + strings.Join(segments, "/")
}

// Delete removes path. Deleting a missing object is not an error.
func (store *Store) Delete(context context.Context, path string) error {
	if err := context.Err(); err != nil {
		return err
	}

	err := store.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketObjects).Delete([]byte(path)); err != nil {
			return err
		}
		return tx.Bucket(bucketTypes).Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("blob_delete_failed: %w", err)
	}
	return nil
}

// Get returns a copy of the object stored at path.
func (store *Store) Get(path string) (*Object, error) {
	var object *Object

	err := store.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketObjects).Get([]byte(path))
		if data == nil {
			return nil
		}
		// Bolt slices are only valid inside the transaction.
		object = &Object{
			Data:        append([]byte(nil), data...),
			ContentType: string(tx.Bucket(bucketTypes).Get([]byte(path))),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob_get_failed: %w", err)
	}
	if object == nil {
		return nil, ErrNotFound
	}
	return object, nil
}

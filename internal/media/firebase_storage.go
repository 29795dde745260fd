package media

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// FirebaseStorageUploader implements Uploader on a Firebase Storage bucket
type FirebaseStorageUploader struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewFirebaseStorageUploader creates a new FirebaseStorageUploader
func NewFirebaseStorageUploader(bucket *storage.BucketHandle, bucketName, prefix string) *FirebaseStorageUploader {
	return &FirebaseStorageUploader{bucket: bucket, name: bucketName, prefix: prefix}
}

// Upload writes the file under prefix/<kind>/<uuid><ext> and returns a
// token-protected download URL.
func (u *FirebaseStorageUploader) Upload(ctx context.Context, f *File) (string, error) {
	object := path.Join(u.prefix, string(f.Kind), uuid.NewString()+f.Extension())
	token := uuid.NewString()

	w := u.bucket.Object(object).NewWriter(ctx)
	w.ContentType = f.ContentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(f.Data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", object, err)
	}

	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		u.name, url.PathEscape(object), token), nil
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client talks to Firestore and Cloud Storage on behalf of the coordinator.
type Client struct {
	fs         *firestore.Client
	bucket     *storage.BucketHandle
	bucketName string
}

// NewClient initializes the cloud clients from a service account file.
// Errors here are configuration errors and fatal at startup.
func NewClient(ctx context.Context, serviceAccountPath, bucketName string) (*Client, error) {
	projectID, err := projectIDFromServiceAccount(serviceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}

	fs, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	st, err := storage.NewClient(ctx, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("storage client: %w", err)
	}

	log.Printf("Session: cloud clients initialized (project %s, bucket %s)", projectID, bucketName)
	return &Client{
		fs:         fs,
		bucket:     st.Bucket(bucketName),
		bucketName: bucketName,
	}, nil
}

// Close releases the underlying clients.
func (c *Client) Close() {
	c.fs.Close()
}

// UploadImage stores JPEG screenshot bytes for the session and returns a
// public URL the student page can load.
func (c *Client) UploadImage(ctx context.Context, sessionID string, data []byte) (string, error) {
	objPath := blobPath(sessionID, time.Now())

	w := c.bucket.Object(objPath).NewWriter(ctx)
	w.ContentType = "image/jpeg"
	w.CacheControl = "no-cache"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", objPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", objPath, err)
	}

	if err := c.bucket.Object(objPath).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("make %s public: %w", objPath, err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, objPath)
	log.Printf("Session: screenshot uploaded: %s", objPath)
	return url, nil
}

// SetCurrentSlide commits the new slide pointer in a single merge write, so
// students never observe a half-updated session document.
func (c *Client) SetCurrentSlide(ctx context.Context, sessionID string, upd SlideUpdate) error {
	_, err := c.fs.Collection("sessions").Doc(sessionID).Set(ctx, map[string]interface{}{
		"slides":     firestore.ArrayUnion(upd.ImageURL),
		"slideIndex": upd.Index,
		"screenshotMeta": map[string]interface{}{
			"width":        upd.Width,
			"height":       upd.Height,
			"monitorIndex": upd.MonitorIndex,
		},
		"lastUpdated": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
	return nil
}

// CurrentSlideIndex returns the session's slide index, or -1 when the session
// document does not exist yet (sessions are created by the first capture).
func (c *Client) CurrentSlideIndex(ctx context.Context, sessionID string) (int, error) {
	snap, err := c.fs.Collection("sessions").Doc(sessionID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	if idx, ok := snap.Data()["slideIndex"].(int64); ok {
		return int(idx), nil
	}
	return -1, nil
}

func projectIDFromServiceAccount(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &sa); err != nil {
		return "", err
	}
	if sa.ProjectID == "" {
		return "", fmt.Errorf("no project_id in %s", path)
	}
	return sa.ProjectID, nil
}

package firebase

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and its service clients
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	Firestore   *firestore.Client
	Bucket      *storage.BucketHandle
	BucketName  string
}

// Options selects the project and storage bucket
type Options struct {
	CredentialsPath string
	ProjectID       string
	StorageBucket   string
}

// InitFirebase initializes the Firebase application with auth, Firestore
// and, when a bucket is configured, Storage clients.
func InitFirebase(ctx context.Context, opts Options, log logrus.FieldLogger) (*App, error) {
	if opts.CredentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	if _, err := os.Stat(opts.CredentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", opts.CredentialsPath)
	}

	opt := option.WithCredentialsFile(opts.CredentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     opts.ProjectID,
		StorageBucket: opts.StorageBucket,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	app := &App{FirebaseApp: firebaseApp, AuthClient: authClient, Firestore: firestoreClient}

	if opts.StorageBucket != "" {
		storageClient, err := firebaseApp.Storage(ctx)
		if err != nil {
			firestoreClient.Close()
			return nil, fmt.Errorf("error getting firebase storage client: %w", err)
		}
		bucket, err := storageClient.DefaultBucket()
		if err != nil {
			firestoreClient.Close()
			return nil, fmt.Errorf("error opening storage bucket: %w", err)
		}
		app.Bucket = bucket
		app.BucketName = opts.StorageBucket
	}

	log.Info("Firebase app and clients initialized successfully!")
	return app, nil
}

// Close releases the Firestore client
func (a *App) Close() error {
	return a.Firestore.Close()
}

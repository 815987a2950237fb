package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Firebase app backing both the Firestore
// store and the admin directory. It first attempts to use credentials from
// the FIREBASE_SERVICE_ACCOUNT_JSON environment variable (Base64 encoded),
// falling back to a local service account key file.
func NewFirebaseApp(ctx context.Context, localFilePath string) (*firebase.App, error) {
	var opt option.ClientOption

	encodedCreds := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FIREBASE_SERVICE_ACCOUNT_JSON: %v", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("Firebase: initializing from FIREBASE_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("local firebase file not found: %s, and FIREBASE_SERVICE_ACCOUNT_JSON environment variable is not set", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Printf("Firebase: initializing from local file: %s.", localFilePath)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}
	return app, nil
}

// FirebaseDirectory implements Directory on the Firebase admin SDK.
type FirebaseDirectory struct {
	client *fbauth.Client
}

func NewFirebaseDirectory(ctx context.Context, app *firebase.App) (*FirebaseDirectory, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting auth client: %v", err)
	}
	return &FirebaseDirectory{client: client}, nil
}

func (d *FirebaseDirectory) LookupUIDByEmail(ctx context.Context, email string) (string, error) {
	rec, err := d.client.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("admin lookup failed for %s: %w", email, err)
	}
	return rec.UID, nil
}

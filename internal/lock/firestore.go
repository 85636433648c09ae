package lock

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection holds one document per lock key.
const DefaultFirestoreCollection = "achievements-processor-lock"

// FirestoreBackend keeps leases as documents {owner, t} where t is the
// expiry. Acquisition and release run in Firestore transactions.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// NewFirestoreClient opens a Firestore client through a Firebase app.
// credentialsFile may be empty to use application default credentials or
// the emulator (FIRESTORE_EMULATOR_HOST).
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return client, nil
}

// NewFirestoreBackend creates a backend writing to collection.
func NewFirestoreBackend(client *firestore.Client, collection string, now func() time.Time) *FirestoreBackend {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	if now == nil {
		now = time.Now
	}
	return &FirestoreBackend{client: client, collection: collection, now: now}
}

type firestoreLease struct {
	Owner   string    `firestore:"owner"`
	Expires time.Time `firestore:"t"`
}

func (b *FirestoreBackend) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	doc := b.client.Collection(b.collection).Doc(key)
	acquired := false
	err := b.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		now := b.now()
		snap, err := tx.Get(doc)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var lease firestoreLease
			if err := snap.DataTo(&lease); err != nil {
				return fmt.Errorf("decode lease: %w", err)
			}
			if now.Before(lease.Expires) {
				return nil
			}
		}
		acquired = true
		return tx.Set(doc, firestoreLease{Owner: owner, Expires: now.Add(ttl)})
	})
	if err != nil {
		return false, fmt.Errorf("firestore acquire: %w", err)
	}
	return acquired, nil
}

func (b *FirestoreBackend) Release(ctx context.Context, key, owner string) error {
	doc := b.client.Collection(b.collection).Doc(key)
	err := b.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var lease firestoreLease
		if err := snap.DataTo(&lease); err != nil {
			return fmt.Errorf("decode lease: %w", err)
		}
		if lease.Owner != owner {
			return nil
		}
		return tx.Delete(doc)
	})
	if err != nil {
		return fmt.Errorf("firestore release: %w", err)
	}
	return nil
}

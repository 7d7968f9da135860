package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// firestoreStore adapts a Firestore client to the Store interface.
type firestoreStore struct {
	client *firestore.Client
	log    *logger.Logger
}

func NewFirestoreStore(ctx context.Context, projectID string, log *logger.Logger) (Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("missing firestore project id")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &firestoreStore{
		client: client,
		log:    log.With("component", "FirestoreStore"),
	}, nil
}

func (s *firestoreStore) docRef(path string) (*firestore.DocumentRef, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segs)%2 != 0 {
		return nil, fmt.Errorf("path %q is not a document path", path)
	}
	ref := s.client.Collection(segs[0]).Doc(segs[1])
	for i := 2; i < len(segs); i += 2 {
		ref = ref.Collection(segs[i]).Doc(segs[i+1])
	}
	return ref, nil
}

func (s *firestoreStore) collRef(path string) (*firestore.CollectionRef, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segs)%2 != 1 {
		return nil, fmt.Errorf("path %q is not a collection path", path)
	}
	coll := s.client.Collection(segs[0])
	for i := 1; i < len(segs); i += 2 {
		coll = coll.Doc(segs[i]).Collection(segs[i+1])
	}
	return coll, nil
}

func (s *firestoreStore) Get(ctx context.Context, path string) (map[string]any, error) {
	ref, err := s.docRef(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, apperr.Storef("get %s: %v", path, err)
	}
	return snap.Data(), nil
}

func (s *firestoreStore) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	ref, err := s.docRef(path)
	if err != nil {
		return err
	}
	opts := []firestore.SetOption{}
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := ref.Set(ctx, fields, opts...); err != nil {
		return apperr.Storef("set %s: %v", path, err)
	}
	return nil
}

func (s *firestoreStore) Update(ctx context.Context, path string, fields map[string]any) error {
	ref, err := s.docRef(path)
	if err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return apperr.Storef("update %s: %v", path, err)
	}
	return nil
}

func (s *firestoreStore) Increment(ctx context.Context, path string, field string, delta int64) error {
	ref, err := s.docRef(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]any{field: firestore.Increment(delta)}, firestore.MergeAll)
	if err != nil {
		return apperr.Storef("increment %s.%s: %v", path, field, err)
	}
	return nil
}

func (s *firestoreStore) Delete(ctx context.Context, path string) error {
	ref, err := s.docRef(path)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return apperr.Storef("delete %s: %v", path, err)
	}
	return nil
}

func (s *firestoreStore) ListChildren(ctx context.Context, collectionPath string) ([]string, error) {
	coll, err := s.collRef(collectionPath)
	if err != nil {
		return nil, err
	}
	var ids []string
	it := coll.DocumentRefs(ctx)
	for {
		ref, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperr.Storef("list %s: %v", collectionPath, err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// DeleteTree removes a document and every descendant document, depth-first.
func (s *firestoreStore) DeleteTree(ctx context.Context, path string) error {
	ref, err := s.docRef(path)
	if err != nil {
		return err
	}
	return s.deleteDocRecursive(ctx, ref)
}

func (s *firestoreStore) deleteDocRecursive(ctx context.Context, ref *firestore.DocumentRef) error {
	collIt := ref.Collections(ctx)
	for {
		coll, err := collIt.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return apperr.Storef("list subcollections of %s: %v", ref.Path, err)
		}
		docIt := coll.DocumentRefs(ctx)
		for {
			child, err := docIt.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return apperr.Storef("list documents of %s: %v", coll.Path, err)
			}
			if err := s.deleteDocRecursive(ctx, child); err != nil {
				return err
			}
		}
	}
	if _, err := ref.Delete(ctx); err != nil {
		return apperr.Storef("delete %s: %v", ref.Path, err)
	}
	return nil
}

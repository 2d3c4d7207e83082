package ingress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/broker"
	"github.com/ndidit/notifyhub/internal/dtos"
)

type fakeStore struct {
	mu       sync.Mutex
	idempo   map[string]string
	records  map[string]*dtos.NotificationRecord
	indexLen map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{idempo: map[string]string{}, records: map[string]*dtos.NotificationRecord{}, indexLen: map[string]int{}}
}

func (f *fakeStore) GetIdempotentNotificationID(ctx context.Context, requestID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idempo[requestID], nil
}

func (f *fakeStore) ReserveIdempotency(ctx context.Context, requestID, notificationID string, ttl time.Duration) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.idempo[requestID]; ok {
		return false, existing, nil
	}
	f.idempo[requestID] = notificationID
	return true, "", nil
}

func (f *fakeStore) PutNotificationRecord(ctx context.Context, rec *dtos.NotificationRecord, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.NotificationID] = rec
	return nil
}

func (f *fakeStore) GetNotificationRecord(ctx context.Context, id string) (*dtos.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id], nil
}

func (f *fakeStore) AppendUserIndex(ctx context.Context, userID, notificationID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexLen[userID]++
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*dtos.QueueMessage
}

func (f *fakePublisher) Publish(ctx context.Context, msg *dtos.QueueMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeUsers struct {
	data map[string]*dtos.UserDirectoryData
}

func (f *fakeUsers) Get(ctx context.Context, userID string) (*dtos.UserDirectoryData, error) {
	return f.data[userID], nil
}

func newService(store *fakeStore, pub *fakePublisher, users *fakeUsers) *Service {
	return New(store, pub, users, 5, 24*time.Hour, zerolog.Nop())
}

func TestSubmitIdempotencyConcurrent(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	users := &fakeUsers{data: map[string]*dtos.UserDirectoryData{
		"u1": {Email: "ada@x", Preferences: dtos.UserPreferences{Email: true}},
	}}
	svc := newService(store, pub, users)

	req := &dtos.NotificationRequest{
		NotificationType: dtos.Email,
		UserID:           "u1",
		TemplateCode:     "welcome",
		RequestID:        "r1",
		Priority:         3,
	}

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, fail := svc.Submit(context.Background(), req, "corr")
			if fail != nil {
				t.Errorf("unexpected failure: %v", fail)
				return
			}
			ids[i] = res.NotificationID
		}(i)
	}
	wg.Wait()

	if pub.count() != 1 {
		t.Fatalf("expected exactly one publish, got %d", pub.count())
	}
	first := ids[0]
	for _, id := range ids {
		if id != first {
			t.Fatalf("expected all responses to share notification_id, got %v", ids)
		}
	}
}

func TestSubmitPreferenceGateTerminal(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	users := &fakeUsers{data: map[string]*dtos.UserDirectoryData{
		"u2": {Email: "x@x", Preferences: dtos.UserPreferences{Email: false}},
	}}
	svc := newService(store, pub, users)

	req := &dtos.NotificationRequest{
		NotificationType: dtos.Email,
		UserID:           "u2",
		TemplateCode:     "welcome",
		RequestID:        "r2",
		Priority:         3,
	}

	_, fail := svc.Submit(context.Background(), req, "corr")
	if fail == nil || fail.Code != "BlockedByPreference" {
		t.Fatalf("expected BlockedByPreference, got %v", fail)
	}
	if pub.count() != 0 {
		t.Fatalf("expected no publish, got %d", pub.count())
	}
	if len(store.records) != 0 {
		t.Fatalf("expected no record, got %d", len(store.records))
	}
}

func TestSubmitPriorityRouting(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	users := &fakeUsers{data: map[string]*dtos.UserDirectoryData{
		"u3": {Email: "x@x", Preferences: dtos.UserPreferences{Email: true}},
	}}
	svc := newService(store, pub, users)

	req := &dtos.NotificationRequest{
		NotificationType: dtos.Email,
		UserID:           "u3",
		TemplateCode:     "welcome",
		RequestID:        "r3",
		Priority:         7,
	}

	if _, fail := svc.Submit(context.Background(), req, "corr"); fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if pub.published[0].Priority != 7 {
		t.Fatalf("expected priority 7 carried on queue message, got %d", pub.published[0].Priority)
	}
	if key := broker.RoutingKey(string(pub.published[0].NotificationType), pub.published[0].Priority); key != "email.priority" {
		t.Fatalf("expected routing key email.priority, got %s", key)
	}
}

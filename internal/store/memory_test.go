package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/google/uuid"
)

func testInput(owner string) models.ComplaintInput {
	return models.ComplaintInput{
		OwnerID:     owner,
		DeptName:    "MCD",
		DeptMail:    "complaints@mcd.gov.in",
		Subject:     "Pothole",
		Description: "large pothole on main road",
		Location:    "Connaught Place, New Delhi",
		Coordinates: models.Coordinates{Lat: 28.6139, Lon: 77.209},
	}
}

func TestNewComplaintNoFormat(t *testing.T) {
	no := NewComplaintNo()
	if !strings.HasPrefix(no, "CMP") {
		t.Fatalf("complaint number %q missing CMP prefix", no)
	}
	if len(no) <= len("CMP")+6 {
		t.Fatalf("complaint number %q too short for millis+entropy", no)
	}
}

func TestCreateAssignsNumberAndDefaults(t *testing.T) {
	s := NewMemoryStore()
	c, err := s.Create(context.Background(), testInput("user-a"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ComplaintNo == "" {
		t.Fatal("complaint number not assigned")
	}
	if c.Status != models.StatusPending {
		t.Fatalf("status %q want Pending", c.Status)
	}
	if c.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestComplaintNumbersUniqueUnderConcurrentCreation(t *testing.T) {
	s := NewMemoryStore()

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Create(context.Background(), testInput("user-a")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}

	all, _ := s.ListForOwner(context.Background(), "user-a")
	seen := make(map[string]struct{}, len(all))
	for _, c := range all {
		if _, dup := seen[c.ComplaintNo]; dup {
			t.Fatalf("duplicate complaint number %s", c.ComplaintNo)
		}
		seen[c.ComplaintNo] = struct{}{}
	}
	if len(seen) != n {
		t.Fatalf("stored %d complaints, want %d", len(seen), n)
	}
}

func TestGetByIDEnforcesOwnership(t *testing.T) {
	s := NewMemoryStore()
	created, err := s.Create(context.Background(), testInput("principal-a"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Principal B must see NotFound, never the record.
	if _, err := s.GetByID(context.Background(), created.ID, "principal-b"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("cross-owner read: got %v want ErrNotFound", err)
	}

	got, err := s.GetByID(context.Background(), created.ID, "principal-a")
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if got.ComplaintNo != created.ComplaintNo {
		t.Fatalf("got %s want %s", got.ComplaintNo, created.ComplaintNo)
	}
}

func TestGetByIDUnknownID(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetByID(context.Background(), uuid.New(), "anyone"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestListForOwnerNewestFirstAndIdempotent(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if _, err := s.Create(context.Background(), testInput("user-a")); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := s.Create(context.Background(), testInput("user-b")); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := s.ListForOwner(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("listed %d complaints for user-a, want 3", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].CreatedAt.After(first[i-1].CreatedAt) {
			t.Fatal("listing not newest-first")
		}
	}

	second, err := s.ListForOwner(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated listing returned a different sequence")
	}
}

func TestRecordEvent(t *testing.T) {
	s := NewMemoryStore()
	err := s.RecordEvent(context.Background(), models.SubmissionEvent{
		ComplaintNo: "CMP1",
		OwnerID:     "user-a",
		Stage:       "stored",
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	events := s.Events()
	if len(events) != 1 || events[0].Stage != "stored" {
		t.Fatalf("events %+v", events)
	}
}

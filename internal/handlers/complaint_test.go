package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civiclens/routing-server/internal/mail"
	"github.com/civiclens/routing-server/internal/middleware"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/civiclens/routing-server/internal/pipeline"
	"github.com/civiclens/routing-server/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fixedResolver struct{}

func (fixedResolver) Resolve(ctx context.Context, lat, lon float64) (models.ResolvedAddress, error) {
	return models.ResolvedAddress{
		Formatted: "Connaught Place, New Delhi",
		Raw:       models.Coordinates{Lat: lat, Lon: lon},
	}, nil
}

type fixedClassifier struct{}

func (fixedClassifier) Classify(ctx context.Context, address models.ResolvedAddress, issue string, principal models.Principal) (models.ClassificationResult, error) {
	return models.ClassificationResult{
		Department:      "MCD",
		DepartmentEmail: "complaints@mcd.gov.in",
		Confidence:      models.ConfidenceModel,
	}, nil
}

func (fixedClassifier) DescribeImage(ctx context.Context, base64Image, mimeType string) (string, error) {
	return "a pothole", nil
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, to, subject, body string, cred mail.Credential) error {
	return nil
}

var testPrincipal = models.Principal{ID: "user-1", Name: "Asha Verma", Email: "asha@example.com"}

func testHandler(t *testing.T) *ComplaintHandler {
	t.Helper()
	mem := store.NewMemoryStore()
	o := pipeline.NewOrchestrator(fixedResolver{}, fixedClassifier{}, mem, noopMailer{}, zap.NewNop().Sugar())
	return NewComplaintHandler(o, zap.NewNop().Sugar())
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithPrincipal(req.Context(), testPrincipal))
}

func TestClassifyEndpoint(t *testing.T) {
	h := testHandler(t)

	rr := httptest.NewRecorder()
	h.Classify(rr, authedRequest(http.MethodPost, "/api/v1/complaints/classify",
		`{"lat":28.6139,"lon":77.2090,"issueDescription":"large pothole on main road"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rr.Code, rr.Body.String())
	}
	var draft models.Draft
	if err := json.Unmarshal(rr.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if draft.DeptName != "MCD" || !strings.Contains(draft.Location, "Connaught Place") {
		t.Fatalf("draft %+v", draft)
	}
	if draft.Body == "" || draft.Subject == "" {
		t.Fatalf("draft not composed: %+v", draft)
	}
}

func TestClassifyEndpointRequiresCoordinates(t *testing.T) {
	h := testHandler(t)

	var cases = []string{
		`{"issueDescription":"pothole"}`,
		`{"lat":28.6,"issueDescription":"pothole"}`,
		`{"lon":77.2,"issueDescription":"pothole"}`,
		`not json`,
	}
	for _, body := range cases {
		rr := httptest.NewRecorder()
		h.Classify(rr, authedRequest(http.MethodPost, "/api/v1/complaints/classify", body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d want 400", body, rr.Code)
		}
	}
}

func TestSubmitAndListEndpoints(t *testing.T) {
	h := testHandler(t)

	rr := httptest.NewRecorder()
	h.Submit(rr, authedRequest(http.MethodPost, "/api/v1/complaints",
		`{"deptName":"MCD","deptMail":"complaints@mcd.gov.in","subject":"Pothole","body":"Dear MCD","location":"CP","coordinates":{"lat":28.6,"lon":77.2}}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("submit status %d body %s", rr.Code, rr.Body.String())
	}
	var result models.SubmitResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ComplaintNo == "" || result.DeliveryStatus != pipeline.DeliverySent {
		t.Fatalf("result %+v", result)
	}

	rr = httptest.NewRecorder()
	h.List(rr, authedRequest(http.MethodGet, "/api/v1/complaints", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status %d", rr.Code)
	}
	var listing struct {
		Success    bool               `json:"success"`
		Complaints []models.Complaint `json:"complaints"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if !listing.Success || len(listing.Complaints) != 1 {
		t.Fatalf("listing %+v", listing)
	}
	if listing.Complaints[0].ComplaintNo != result.ComplaintNo {
		t.Fatalf("listed %s want %s", listing.Complaints[0].ComplaintNo, result.ComplaintNo)
	}
}

func TestGetEndpointRejectsBadID(t *testing.T) {
	h := testHandler(t)

	router := chi.NewRouter()
	router.Get("/api/v1/complaints/{id}", h.Get)

	req := authedRequest(http.MethodGet, "/api/v1/complaints/not-a-uuid", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d want 400", rr.Code)
	}
}

func TestEndpointsRequirePrincipal(t *testing.T) {
	h := testHandler(t)

	endpoints := []func(http.ResponseWriter, *http.Request){h.Classify, h.Submit, h.List, h.Get}
	for i, fn := range endpoints {
		req := httptest.NewRequest(http.MethodGet, "/", nil) // no principal in context
		rr := httptest.NewRecorder()
		fn(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("endpoint %d: status %d want 401", i, rr.Code)
		}
	}
}

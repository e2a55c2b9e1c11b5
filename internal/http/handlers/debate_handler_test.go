package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/services"
)

func TestCreateDebate_Success(t *testing.T) {
	var gotUser string
	var gotParams services.CreateDebateParams
	debate := &fakeDebateSvc{
		create: func(userID string, p services.CreateDebateParams) (*domain.Debate, error) {
			gotUser, gotParams = userID, p
			return &domain.Debate{ID: "d-1", Question: p.Question}, nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	body := `{"question":"Is Go boring?","participant_models":["gpt-4o","grok-3"],"moderator_model":"gpt-4o-mini","blind_mode":true}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/debates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "alice")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotUser != "alice" {
		t.Fatalf("user=%q", gotUser)
	}
	if !gotParams.VotingEnabled {
		t.Fatalf("voting should default to true")
	}
	if !gotParams.BlindMode || len(gotParams.ParticipantModels) != 2 {
		t.Fatalf("params = %+v", gotParams)
	}

	var resp domain.Debate
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.ID != "d-1" {
		t.Fatalf("body = %s (%v)", w.Body.String(), err)
	}
}

func TestCreateDebate_VotingOptOut(t *testing.T) {
	var gotParams services.CreateDebateParams
	debate := &fakeDebateSvc{
		create: func(_ string, p services.CreateDebateParams) (*domain.Debate, error) {
			gotParams = p
			return &domain.Debate{}, nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	body := `{"question":"q","participant_models":["a","b"],"moderator_model":"m","voting_enabled":false}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/debates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
	if gotParams.VotingEnabled {
		t.Fatalf("explicit opt-out ignored")
	}
}

func TestCreateDebate_BadInput(t *testing.T) {
	r := testRouter(&fakeDebateSvc{
		create: func(string, services.CreateDebateParams) (*domain.Debate, error) {
			return nil, services.ErrInvalidParticipants
		},
	}, nil, nil, nil, nil)

	// malformed JSON
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/debates", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON status=%d", w.Code)
	}

	// missing required fields never reach the service
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/debates", strings.NewReader(`{"title":"no question"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields status=%d", w.Code)
	}

	// service-level validation maps to 400 with the stable code
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/debates",
		strings.NewReader(`{"question":"q","participant_models":["a"],"moderator_model":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation status=%d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeBadRequest {
		t.Fatalf("error body = %s (%v)", w.Body.String(), err)
	}
}

func TestFailService_WrappedSentinels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrapped not found", fmt.Errorf("load debate: %w", services.ErrDebateNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"wrapped conflict", fmt.Errorf("finalize: %w", services.ErrResultExists), http.StatusConflict, ErrCodeConflict},
		{"wrapped unknown model", fmt.Errorf("%w: %q", llm.ErrUnknownModel, "gpt-99"), http.StatusBadRequest, ErrCodeBadRequest},
		{"wrapped no credential", fmt.Errorf("invoke: %w", llm.ErrNoCredential), http.StatusBadRequest, ErrCodeBadRequest},
		{"wrapped provider mismatch", fmt.Errorf("invoke: %w", llm.ErrProviderMismatch), http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			failService(c, tc.err, ErrCodeInternal)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != tc.wantCode {
				t.Fatalf("body = %s (%v)", w.Body.String(), err)
			}
		})
	}
}

func TestListDebates_PaginationEnvelope(t *testing.T) {
	var gotPage, gotSize int
	debate := &fakeDebateSvc{
		listPage: func(_ string, page, pageSize int) ([]domain.Debate, int64, error) {
			gotPage, gotSize = page, pageSize
			return []domain.Debate{{ID: "d-1"}, {ID: "d-2"}}, 5, nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debates?page=2&page_size=2", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotPage != 2 || gotSize != 2 {
		t.Fatalf("page=%d size=%d", gotPage, gotSize)
	}
	var resp ListDebatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	p := resp.Pagination
	if p.Total != 5 || p.TotalPages != 3 || !p.HasNext || p.Page != 2 {
		t.Fatalf("pagination = %+v", p)
	}
}

func TestListDebates_ClampsQueryParams(t *testing.T) {
	var gotPage, gotSize int
	debate := &fakeDebateSvc{
		listPage: func(_ string, page, pageSize int) ([]domain.Debate, int64, error) {
			gotPage, gotSize = page, pageSize
			return nil, 0, nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debates?page=-3&page_size=9999", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotPage != 1 || gotSize != 100 {
		t.Fatalf("clamped page=%d size=%d", gotPage, gotSize)
	}
}

func TestGetDebate(t *testing.T) {
	id := uuid.NewString()
	debate := &fakeDebateSvc{
		get: func(userID, debateID string) (*domain.Debate, error) {
			if debateID != id {
				return nil, services.ErrDebateNotFound
			}
			return &domain.Debate{ID: id, Title: "found"}, nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debates/"+id, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "found") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	// non-UUID ids are rejected before the service sees them
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debates/not-a-uuid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debates/"+uuid.NewString(), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeNotFound {
		t.Fatalf("error body = %s", w.Body.String())
	}
}

func TestUpdateDebateTitle(t *testing.T) {
	id := uuid.NewString()
	var gotTitle string
	debate := &fakeDebateSvc{
		updateTitle: func(_, _, title string) error {
			gotTitle = title
			return nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/debates/"+id+"/title", strings.NewReader(`{"title":"Renamed"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || gotTitle != "Renamed" {
		t.Fatalf("status=%d title=%q", w.Code, gotTitle)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/debates/"+id+"/title", strings.NewReader(`{"title":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank title status=%d", w.Code)
	}
}

func TestArchiveDebate(t *testing.T) {
	id := uuid.NewString()
	archived := false
	debate := &fakeDebateSvc{
		archive: func(_, debateID string) error {
			archived = debateID == id
			return nil
		},
	}
	r := testRouter(debate, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/debates/"+id, nil))
	if w.Code != http.StatusNoContent || !archived {
		t.Fatalf("status=%d archived=%v", w.Code, archived)
	}
}

func TestListModels_SortedAndSanitized(t *testing.T) {
	catalog := llm.Catalog{
		"zeta":  {ID: "zeta", Provider: llm.ProviderXAI, DisplayName: "Zeta", WireName: "zeta-wire", InUSDPerMTok: 9},
		"alpha": {ID: "alpha", Provider: llm.ProviderOpenAI, DisplayName: "Alpha"},
	}
	r := testRouter(nil, nil, nil, nil, catalog)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	var models []ModelInfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &models); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(models) != 2 || models[0].ID != "alpha" || models[1].ID != "zeta" {
		t.Fatalf("models = %+v", models)
	}
	if models[1].Provider != "xai" || models[1].DisplayName != "Zeta" {
		t.Fatalf("entry = %+v", models[1])
	}
	// wire names and pricing stay internal
	if strings.Contains(w.Body.String(), "zeta-wire") {
		t.Fatalf("leaked internal catalog fields: %s", w.Body.String())
	}
}

func TestUserID_Precedence(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got string
	r := gin.New()
	r.GET("/ctx", func(c *gin.Context) {
		c.Set("userID", "from-middleware")
		got = userID(c)
	})
	r.GET("/header", func(c *gin.Context) { got = userID(c) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set("X-User-ID", "ignored")
	r.ServeHTTP(w, req)
	if got != "from-middleware" {
		t.Fatalf("context user = %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/header", nil)
	req.Header.Set("X-User-ID", "bob")
	r.ServeHTTP(w, req)
	if got != "bob" {
		t.Fatalf("header user = %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/header", nil))
	if got != "demo-user" {
		t.Fatalf("fallback user = %q", got)
	}
}

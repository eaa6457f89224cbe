package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"profreg/internal/register/models"
	"profreg/internal/register/search"
	"profreg/internal/register/service"
	entitystore "profreg/internal/register/store/entity"
	versionstore "profreg/internal/register/store/version"
)

const testAdminToken = "test-admin-token"

type HandlerSuite struct {
	suite.Suite

	server *httptest.Server
	index  *search.InMemory
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	versions := versionstore.NewInMemory()
	entities := entitystore.NewInMemory()
	s.index = search.NewInMemory()

	logger := slog.New(slog.DiscardHandler)
	svc := service.New(
		service.NewInMemoryTxRunner(versions, entities),
		versions, entities,
		map[models.Kind]service.SearchIndex{
			models.KindProfession:   s.index,
			models.KindOrganisation: search.NewInMemory(),
		},
		service.NewSlugService(entities),
		service.WithLogger(logger),
	)
	s.server = httptest.NewServer(NewRouter(New(svc, logger), testAdminToken))
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) adminRequest(method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("X-Admin-Token", testAdminToken)
	req.Header.Set("X-Editor", "editor@example.com")
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *HandlerSuite) decode(resp *http.Response, into any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

type entityVersionResponse struct {
	Entity  models.Entity  `json:"entity"`
	Version models.Version `json:"version"`
}

func (s *HandlerSuite) createEntity(name string) entityVersionResponse {
	resp := s.adminRequest(http.MethodPost, "/admin/entities", map[string]any{
		"kind":        "profession",
		"name":        name,
		"summary":     "Regulated in the UK",
		"legislation": []string{"Health Act 1999"},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var out entityVersionResponse
	s.decode(resp, &out)
	return out
}

func (s *HandlerSuite) TestAdminRoutesRejectMissingToken() {
	resp, err := s.server.Client().Post(s.server.URL+"/admin/entities", "application/json", bytes.NewBufferString("{}"))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *HandlerSuite) TestAdminRoutesRejectWrongToken() {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/admin/entities", bytes.NewBufferString("{}"))
	s.Require().NoError(err)
	req.Header.Set("X-Admin-Token", "wrong")
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *HandlerSuite) TestCreateEntityValidatesBody() {
	resp := s.adminRequest(http.MethodPost, "/admin/entities", map[string]any{
		"kind": "profession",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.adminRequest(http.MethodPost, "/admin/entities", map[string]any{
		"kind": "guild",
		"name": "Alchemist",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestCreateConfirmPublishServesPublicRecord() {
	created := s.createEntity("Social Worker")
	s.Equal(models.StatusUnconfirmed, created.Version.Status)
	s.Equal("editor@example.com", created.Version.CreatedBy)

	resp := s.adminRequest(http.MethodPost, fmt.Sprintf("/admin/versions/%s/confirm", created.Version.ID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var confirmed models.Version
	s.decode(resp, &confirmed)
	s.Equal(models.StatusDraft, confirmed.Status)

	resp = s.adminRequest(http.MethodPost, fmt.Sprintf("/admin/versions/%s/publish", created.Version.ID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var published models.Version
	s.decode(resp, &published)
	s.Equal(models.StatusLive, published.Status)
	s.Equal(1, s.index.Len())

	resp, err := s.server.Client().Get(s.server.URL + "/profession/social-worker")
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var public entityVersionResponse
	s.decode(resp, &public)
	s.Equal("Social Worker", public.Entity.Name)
	s.Equal(created.Version.ID, public.Version.ID)
}

func (s *HandlerSuite) TestPublishRejectsUnconfirmedWithConflict() {
	created := s.createEntity("Social Worker")

	resp := s.adminRequest(http.MethodPost, fmt.Sprintf("/admin/versions/%s/publish", created.Version.ID), nil)
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *HandlerSuite) TestTransitionValidatesVersionID() {
	resp := s.adminRequest(http.MethodPost, "/admin/versions/not-a-uuid/confirm", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) TestDeriveDraftAndListVersions() {
	created := s.createEntity("Social Worker")

	resp := s.adminRequest(http.MethodPost, fmt.Sprintf("/admin/entities/%s/versions", created.Entity.ID), nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var draft models.Version
	s.decode(resp, &draft)
	s.Equal(models.StatusUnconfirmed, draft.Status)
	s.Equal("Regulated in the UK", draft.Summary)

	resp = s.adminRequest(http.MethodGet, fmt.Sprintf("/admin/entities/%s/versions", created.Entity.ID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var listing struct {
		Versions []models.Version `json:"versions"`
	}
	s.decode(resp, &listing)
	s.Len(listing.Versions, 2)
}

func (s *HandlerSuite) TestRenamePublishedEntity() {
	created := s.createEntity("Sanitary Engineer")
	resp := s.adminRequest(http.MethodPost, fmt.Sprintf("/admin/versions/%s/confirm", created.Version.ID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = s.adminRequest(http.MethodPost, fmt.Sprintf("/admin/versions/%s/publish", created.Version.ID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.adminRequest(http.MethodPost, "/admin/entities/profession/rename", map[string]string{
		"old_name": "Sanitary Engineer",
		"new_name": "Public Health Engineer",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var renamed map[string]string
	s.decode(resp, &renamed)
	s.Equal("public-health-engineer", renamed["slug"])

	getResp, err := s.server.Client().Get(s.server.URL + "/profession/public-health-engineer")
	s.Require().NoError(err)
	defer getResp.Body.Close()
	s.Equal(http.StatusOK, getResp.StatusCode)

	oldResp, err := s.server.Client().Get(s.server.URL + "/profession/sanitary-engineer")
	s.Require().NoError(err)
	defer oldResp.Body.Close()
	s.Equal(http.StatusNotFound, oldResp.StatusCode)
}

func (s *HandlerSuite) TestPublicRecordUnknownSlugIsNotFound() {
	resp, err := s.server.Client().Get(s.server.URL + "/profession/unknown")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("not_found", body["error"])
}

func (s *HandlerSuite) TestPublicRecordUnknownKindIsBadRequest() {
	resp, err := s.server.Client().Get(s.server.URL + "/guild/social-worker")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

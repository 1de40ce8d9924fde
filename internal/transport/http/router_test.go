package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tripsecretary/internal/cards/issuer"
	cardservice "tripsecretary/internal/cards/service"
	cardmemory "tripsecretary/internal/cards/store/memory"
	"tripsecretary/internal/forms/debounce"
	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/interaction"
	interactionstore "tripsecretary/internal/forms/interaction/store"
	"tripsecretary/internal/forms/schema"
	"tripsecretary/internal/jwtauth"
	recordmodels "tripsecretary/internal/records/models"
	recordservice "tripsecretary/internal/records/service"
	recordstore "tripsecretary/internal/records/store"
	recordmemory "tripsecretary/internal/records/store/memory"
	id "tripsecretary/pkg/domain"
)

// RouterSuite runs requests through the full stack: auth middleware, chi
// routing, handlers, services, memory stores.
type RouterSuite struct {
	suite.Suite

	server  *httptest.Server
	jwt     *jwtauth.Service
	user    id.UserID
	token   string
	stores  recordstore.Stores
	cards   *cardmemory.CardStore
	records *recordservice.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.user = id.NewUserID()
	s.jwt = jwtauth.NewService("router-test-key", "tripsecretary", "tripsecretary-app")

	token, err := s.jwt.GenerateAccessToken(s.user, time.Hour)
	s.Require().NoError(err)
	s.token = token

	s.stores = recordstore.Stores{
		Passports:    recordmemory.NewPassportStore(),
		PersonalInfo: recordmemory.NewPersonalInfoStore(),
		FundItems:    recordmemory.NewFundItemStore(),
		TravelInfo:   recordmemory.NewTravelInfoStore(),
		EntryInfo:    recordmemory.NewEntryInfoStore(),
	}
	tracker, err := interaction.NewTracker(interactionstore.NewMemory())
	s.Require().NoError(err)
	fields, err := fieldstate.NewManager(tracker)
	s.Require().NoError(err)

	s.records, err = recordservice.New(s.stores, tracker, fields, debounce.New(10*time.Millisecond))
	s.Require().NoError(err)

	s.cards = cardmemory.NewCardStore()
	cards, err := cardservice.New(s.cards, s.stores, &issuer.Stub{},
		cardservice.WithFormFlusher(s.records),
	)
	s.Require().NoError(err)

	handler := NewHandler(s.records, cards, nil)
	s.server = httptest.NewServer(NewRouter(handler, jwtauth.NewAdapter(s.jwt)))
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) do(method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func decode[T any](s *RouterSuite, resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *RouterSuite) TestRejectsMissingAndInvalidTokens() {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/v1/passports", nil)
	s.Require().NoError(err)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = s.server.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestHealthzIsOpen() {
	resp, err := s.server.Client().Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestSaveThenReadPersonalInfo() {
	resp := s.do(http.MethodPost, "/v1/forms/"+schema.FormPersonalInfo+"/save", saveRequest{
		Fields: map[string]string{"email": "a@b.com", "occupation": "Engineer"},
		Edited: []string{"email", "occupation"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	info := decode[recordmodels.PersonalInfo](s, s.do(http.MethodGet, "/v1/personal-info", nil))
	s.Equal("a@b.com", info.Email)
	s.Equal("Engineer", info.Occupation)
}

func (s *RouterSuite) TestScheduleSaveIsAccepted() {
	resp := s.do(http.MethodPut, "/v1/forms/"+schema.FormPersonalInfo+"/fields", saveRequest{
		Fields: map[string]string{"email": "a@b.com"},
		Edited: []string{"email"},
	})
	resp.Body.Close()
	s.Equal(http.StatusAccepted, resp.StatusCode)
}

func (s *RouterSuite) TestClearFieldResetsTouchedState() {
	resp := s.do(http.MethodPost, "/v1/forms/"+schema.FormPersonalInfo+"/save", saveRequest{
		Fields: map[string]string{"occupation": "Engineer"},
		Edited: []string{"occupation"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	resp = s.do(http.MethodDelete, "/v1/forms/"+schema.FormPersonalInfo+"/fields/occupation", nil)
	resp.Body.Close()
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	// Untouched again: the prefill value must not overwrite the saved one.
	resp = s.do(http.MethodPost, "/v1/forms/"+schema.FormPersonalInfo+"/save", saveRequest{
		Fields: map[string]string{"occupation": "Prefill", "email": "a@b.com"},
		Edited: []string{"email"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	info := decode[recordmodels.PersonalInfo](s, s.do(http.MethodGet, "/v1/personal-info", nil))
	s.Equal("Engineer", info.Occupation)

	resp = s.do(http.MethodDelete, "/v1/forms/"+schema.FormPersonalInfo+"/fields/no_such_field", nil)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RouterSuite) TestUnknownFormIsBadRequest() {
	resp := s.do(http.MethodPost, "/v1/forms/unknown/save", saveRequest{
		Fields: map[string]string{}, Edited: nil,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("invalid_input", body["error"])
}

func (s *RouterSuite) TestValidationFailureMapsTo400() {
	resp := s.do(http.MethodPost, "/v1/forms/"+schema.FormPersonalInfo+"/save", saveRequest{
		Fields: map[string]string{"email": "nope"},
		Edited: []string{"email"},
	})
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RouterSuite) TestCardSubmissionFlow() {
	ctx := context.Background()
	entry := recordmodels.NewEntryInfo(s.user, "TH", time.Now().UTC())
	s.Require().NoError(s.stores.EntryInfo.Save(ctx, entry))

	path := fmt.Sprintf("/v1/entries/%s/cards", entry.ID)
	resp := s.do(http.MethodPost, path, submitCardRequest{CardType: "TDAC"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	card := decode[map[string]any](s, resp)
	s.Equal("success", card["status"])
	s.NotEmpty(card["arrival_card_number"])

	latest := decode[map[string]any](s, s.do(http.MethodGet, path+"/latest?card_type=TDAC", nil))
	s.Equal(card["id"], latest["id"])

	history := decode[map[string][]map[string]any](s, s.do(http.MethodGet, path, nil))
	s.Len(history["cards"], 1)
}

func (s *RouterSuite) TestSubmitAgainstOthersEntryIs404() {
	stranger := recordmodels.NewEntryInfo(id.NewUserID(), "TH", time.Now().UTC())
	s.Require().NoError(s.stores.EntryInfo.Save(context.Background(), stranger))

	resp := s.do(http.MethodPost, fmt.Sprintf("/v1/entries/%s/cards", stranger.ID), submitCardRequest{CardType: "TDAC"})
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) TestDeleteMeCascades() {
	ctx := context.Background()
	info := recordmodels.NewPersonalInfo(s.user, time.Now().UTC())
	info.Email = "a@b.com"
	s.Require().NoError(s.stores.PersonalInfo.Save(ctx, info))

	resp := s.do(http.MethodDelete, "/v1/me", nil)
	resp.Body.Close()
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	getResp := s.do(http.MethodGet, "/v1/personal-info", nil)
	getResp.Body.Close()
	s.Equal(http.StatusNotFound, getResp.StatusCode)
}

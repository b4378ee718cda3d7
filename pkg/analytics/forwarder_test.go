package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForwarder_NilWithoutCredentials(t *testing.T) {
	assert.Nil(t, NewForwarder(ForwarderConfig{}, testLogger(), nil))
	assert.NotNil(t, NewForwarder(ForwarderConfig{GA4MeasurementID: "G-1", GA4APISecret: "s"}, testLogger(), nil))
	assert.NotNil(t, NewForwarder(ForwarderConfig{PixelID: "123"}, testLogger(), nil))

	// GA4 needs both the measurement id and the secret.
	assert.Nil(t, NewForwarder(ForwarderConfig{GA4MeasurementID: "G-1"}, testLogger(), nil))
}

func TestForwarder_NilReceiverIsNoop(t *testing.T) {
	var f *Forwarder
	f.ForwardEvent(context.Background(), &EventRecord{Name: "quote_request"})
}

func TestForwarder_GA4Payload(t *testing.T) {
	var got ga4Payload
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{GA4MeasurementID: "G-ABC", GA4APISecret: "secret"}, testLogger(), nil)
	f.ga4URL = srv.URL

	f.ForwardEvent(context.Background(), &EventRecord{
		ID:        "evt-1",
		Name:      "quote_request",
		Category:  CategoryConversion,
		Path:      "/contact",
		SessionID: "sess-1",
		Params:    map[string]interface{}{"product": "rough cut pine"},
	})

	assert.Equal(t, []string{"G-ABC"}, gotQuery["measurement_id"])
	assert.Equal(t, []string{"secret"}, gotQuery["api_secret"])
	assert.Equal(t, "sess-1", got.ClientID)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "quote_request", got.Events[0].Name)
	assert.Equal(t, "conversion", got.Events[0].Params["event_category"])
	assert.Equal(t, "/contact", got.Events[0].Params["page_path"])
	assert.Equal(t, "rough cut pine", got.Events[0].Params["product"])
}

func TestForwarder_GA4FallsBackToRecordID(t *testing.T) {
	var got ga4Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{GA4MeasurementID: "G-ABC", GA4APISecret: "secret"}, testLogger(), nil)
	f.ga4URL = srv.URL

	f.ForwardEvent(context.Background(), &EventRecord{ID: "evt-2", Name: "page_view"})
	assert.Equal(t, "evt-2", got.ClientID)
}

func TestForwarder_Pixel(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{PixelID: "987654"}, testLogger(), nil)
	f.pixelURL = srv.URL

	f.ForwardEvent(context.Background(), &EventRecord{ID: "evt-3", Name: "phone_call"})

	assert.Equal(t, []string{"987654"}, gotQuery["id"])
	assert.Equal(t, []string{"phone_call"}, gotQuery["ev"])
}

func TestForwarder_ServerErrorDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{GA4MeasurementID: "G-ABC", GA4APISecret: "s", PixelID: "1"}, testLogger(), nil)
	f.ga4URL = srv.URL
	f.pixelURL = srv.URL

	f.ForwardEvent(context.Background(), &EventRecord{ID: "evt-4", Name: "quote_request"})
}

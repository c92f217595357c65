package deliver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

func testGroup() model.Group {
	return model.Group{
		ID:          uuid.New(),
		GroupingKey: 100.0,
		Records: []model.FrameRecord{
			{CameraID: "cam1", FrameNumber: 1, FrameTimestamp: 100.0},
			{CameraID: "cam2", FrameNumber: 1, FrameTimestamp: 100.05},
		},
	}
}

func TestHTTPDeliverer_SuccessfulPost(t *testing.T) {
	var gotPath, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(srv.URL + "/groups")
	err := d.Deliver(context.Background(), testGroup())
	require.NoError(t, err)
	assert.Equal(t, "/groups", gotPath)
	assert.Equal(t, "application/json", gotContentType)
}

func TestHTTPDeliverer_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(srv.URL)
	err := d.Deliver(context.Background(), testGroup())
	require.Error(t, err)
	var transient *model.TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestHTTPDeliverer_ClientErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(srv.URL)
	err := d.Deliver(context.Background(), testGroup())
	require.Error(t, err)
	var transient *model.TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestFunc_AdaptsPlainFunction(t *testing.T) {
	var got model.Group
	var d Deliverer = Func(func(_ context.Context, g model.Group) error {
		got = g
		return nil
	})
	g := testGroup()
	require.NoError(t, d.Deliver(context.Background(), g))
	assert.Equal(t, g.ID, got.ID)
}

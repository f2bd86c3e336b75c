package opas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opas-admin-workers/internal/common/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 5*time.Second, auth.StaticToken("admin-token"))
}

func TestFetchPendingApplications_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/admin/sellers/pending/", r.URL.Path)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"seller_id":1,"email":"a@farm.ph","created_at":"2024-01-02T03:04:05Z","documents":[{"type":"permit"}]},
			{"seller_id":"2","email":"b@farm.ph","documents":null}]`)
	})

	apps, err := c.FetchPendingApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "1", apps[0].SellerID)
	assert.True(t, apps[0].HasDocuments())
	assert.Equal(t, "2", apps[1].SellerID)
	assert.False(t, apps[1].HasDocuments())
}

func TestFetchPendingApplications_Paginated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprint(w, `{"next":"/api/admin/sellers/pending/?page=2","results":[{"seller_id":"1","email":"a@x"}]}`)
		case "2":
			fmt.Fprint(w, `{"next":null,"results":[{"seller_id":"2","email":"b@x"}]}`)
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
		}
	})

	apps, err := c.FetchPendingApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "2", apps[1].SellerID)
}

func TestFetchPendingApplications_EndlessPagination(t *testing.T) {
	var served int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		served++
		fmt.Fprintf(w, `{"next":"/api/admin/sellers/pending/?page=%d","results":[{"seller_id":"%d","email":"s@x"}]}`, served+1, served)
	})

	apps, err := c.FetchPendingApplications(context.Background())
	require.ErrorIs(t, err, ErrTooManyPages)
	assert.Nil(t, apps)
	assert.Equal(t, maxPendingPages, served)
}

func TestFetchPendingApplications_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.FetchPendingApplications(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestApproveSeller(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		wantSuccess bool
		wantText    string
	}{
		{name: "approved", status: 200, body: `{"success":true,"message":"approved"}`, wantSuccess: true},
		{name: "empty 2xx body", status: 204, body: ``, wantSuccess: true},
		{name: "refused in body", status: 200, body: `{"success":false,"error":"seller already approved"}`, wantText: "seller already approved"},
		{name: "refused by status", status: 409, body: `{"detail":"application withdrawn"}`, wantText: "application withdrawn"},
		{name: "not found without body", status: 404, body: ``, wantText: "backend returned status 404"},
		{name: "server error", status: 500, body: `oops`, wantErr: true},
		{name: "forbidden", status: 403, body: `{"detail":"no"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/admin/sellers/S%2F1/approve/", r.URL.EscapedPath())
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "ok [Batch: BATCH_1]", body["admin_notes"])
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			res, err := c.ApproveSeller(context.Background(), "S/1", "ok [Batch: BATCH_1]")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, res.Error)
			}
		})
	}
}

func TestRejectAndSuspend(t *testing.T) {
	var got []map[string]interface{}
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"success":true}`)
	})

	_, err := c.RejectSeller(context.Background(), "7", "blurry permit")
	require.NoError(t, err)
	_, err = c.SuspendSeller(context.Background(), "7", "price ceiling violation", 14)
	require.NoError(t, err)
	_, err = c.SuspendSeller(context.Background(), "7", "fraud", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/admin/sellers/7/reject/", "/api/admin/sellers/7/suspend/", "/api/admin/sellers/7/suspend/"}, paths)
	assert.Equal(t, "blurry permit", got[0]["reason"])
	assert.Equal(t, float64(14), got[1]["duration_days"])
	_, hasDuration := got[2]["duration_days"]
	assert.False(t, hasDuration)

	_, err = c.RejectSeller(context.Background(), " ", "x")
	assert.Error(t, err)
}

package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexus-coupon/internal/service/coupon/domain"
)

func newTestServer(t *testing.T, cmd *fakeCommands, q *fakeQueries) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewCouponHandler(cmd, q).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, consumer, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if consumer != "" {
		req.Header.Set(HeaderConsumerID, consumer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHistoryRoute(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(t, &fakeCommands{}, q)

	resp := do(t, http.MethodGet, srv.URL+"/api/consumers/coupons?page=2&size=5&search=used", "1001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1001), q.consumerID)
	assert.Equal(t, 2, q.page)
	assert.Equal(t, 5, q.size)
	assert.Equal(t, "used", q.search)

	body := decodeBody[map[string]any](t, resp)
	assert.EqualValues(t, 3, body["totalElements"])
}

func TestConsumerHeaderRequired(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, &fakeQueries{})

	for _, consumer := range []string{"", "abc", "-1"} {
		resp := do(t, http.MethodGet, srv.URL+"/api/consumers/coupons/subscription-benefit", consumer, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, consumer)
	}
}

func TestAvailableRoute(t *testing.T) {
	q := &fakeQueries{}
	srv := newTestServer(t, &fakeCommands{}, q)

	resp := do(t, http.MethodGet, srv.URL+"/api/coupons/available?totalAmount=25000", "7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(25000), q.totalAmount)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, resp)["availableCount"])

	resp = do(t, http.MethodGet, srv.URL+"/api/coupons/available", "7", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPromotionRoutes(t *testing.T) {
	cmd := &fakeCommands{
		precheck: domain.PrecheckStatus{Open: true, AlreadyReceived: true},
		outcome:  domain.GrantGranted,
	}
	srv := newTestServer(t, cmd, &fakeQueries{})

	resp := do(t, http.MethodGet, srv.URL+"/api/coupons/promotion/precheck", "7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decodeBody[map[string]bool](t, resp)
	assert.Equal(t, map[string]bool{"isOpen": true, "isSoldOut": false, "isReceived": true}, status)

	resp = do(t, http.MethodPost, srv.URL+"/api/coupons/promotion", "7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "granted", result["outcome"])
	assert.Equal(t, "pppp-pppp-pppp-pp", result["couponCode"])

	// 方法不匹配
	resp = do(t, http.MethodGet, srv.URL+"/api/coupons/promotion", "7", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClaimPromotionErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrSoldOut, http.StatusConflict},
		{domain.ErrAlreadyReceivedPromotion, http.StatusConflict},
		{domain.ErrPromotionNotOpen, http.StatusForbidden},
		{domain.ErrGrantConflict, http.StatusServiceUnavailable},
		{domain.ErrCouponNotFound, http.StatusNotFound},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			srv := newTestServer(t, &fakeCommands{err: tt.err}, &fakeQueries{})
			resp := do(t, http.MethodPost, srv.URL+"/api/coupons/promotion", "7", "")
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decodeBody[map[string]any](t, resp)
			assert.Equal(t, string(domain.FailureCodeOf(tt.err)), body["failure"])
		})
	}
}

func TestInternalDeductEnvelope(t *testing.T) {
	cmd := &fakeCommands{}
	srv := newTestServer(t, cmd, &fakeQueries{})

	body := `{"orderId":"o-1","consumerId":1001,"couponCode":"abcd-efgh-ijkl-mn","couponAmount":3000,"totalAmount":20000}`
	resp := do(t, http.MethodPost, srv.URL+"/internal/coupons/deduct", "", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeBody[Envelope](t, resp)
	assert.Equal(t, "success", env.Message)
	assert.Empty(t, env.Failure)

	require.Len(t, cmd.orders, 1)
	assert.Equal(t, "abcd-efgh-ijkl-mn", *cmd.orders[0].CouponCode)
	assert.Equal(t, int64(20000), cmd.orders[0].TotalAmount)
}

func TestInternalRoutesAlwaysReturn200(t *testing.T) {
	routes := map[string]string{
		"/internal/coupons/deduct":           `{"consumerId":1,"couponCode":"x"}`,
		"/internal/coupons/rollback":         `{"consumerId":1,"couponCode":"x"}`,
		"/internal/coupons/refund":           `{"consumerId":1,"couponCode":"x"}`,
		"/internal/coupons/recover":          `{"consumerId":1,"couponCode":"x"}`,
		"/internal/coupons/regular-payments": `{"consumerId":1}`,
		"/internal/coupons/welcome":          `{"consumerId":1}`,
		"/internal/coupons/promotion/issue":  ``,
	}
	for path, body := range routes {
		t.Run(path, func(t *testing.T) {
			srv := newTestServer(t, &fakeCommands{err: domain.ErrAlreadyUsedCoupon}, &fakeQueries{})
			resp := do(t, http.MethodPost, srv.URL+path, "", body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			env := decodeBody[Envelope](t, resp)
			assert.Equal(t, domain.FailureAlreadyUsedCoupon, env.Failure)
		})
	}
}

func TestInternalWelcomeReturnsCoupon(t *testing.T) {
	cmd := &fakeCommands{}
	srv := newTestServer(t, cmd, &fakeQueries{})

	resp := do(t, http.MethodPost, srv.URL+"/internal/coupons/welcome", "", `{"consumerId":55}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeBody[map[string]any](t, resp)
	data, ok := env["data"].(map[string]any)
	require.True(t, ok, fmt.Sprintf("%v", env))
	assert.Equal(t, "wwww-wwww-wwww-ww", data["couponCode"])
	assert.Equal(t, "WELCOME", data["couponName"])
	assert.Equal(t, []int64{55}, cmd.welcomed)
}

func TestInternalMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeCommands{}, &fakeQueries{})
	resp := do(t, http.MethodPost, srv.URL+"/internal/coupons/deduct", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInternalRoutesRejectNonPositiveConsumer(t *testing.T) {
	paths := []string{
		"/internal/coupons/welcome",
		"/internal/coupons/deduct",
		"/internal/coupons/rollback",
		"/internal/coupons/refund",
		"/internal/coupons/recover",
		"/internal/coupons/regular-payments",
	}
	bodies := []string{`{}`, `{"consumerId":0,"couponCode":"x"}`, `{"consumerId":-7,"couponCode":"x"}`}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			cmd := &fakeCommands{}
			srv := newTestServer(t, cmd, &fakeQueries{})
			for _, body := range bodies {
				resp := do(t, http.MethodPost, srv.URL+path, "", body)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			}
			assert.Empty(t, cmd.calls, "no use case runs without a consumer")
		})
	}
}

package quickbooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wileywidget/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const journalBody = `{"QueryResponse":{"JournalEntry":[{"Id":"11","TxnDate":"2025-02-01","Line":[
{"Id":"0","Amount":1500.25,"DetailType":"JournalEntryLineDetail","JournalEntryLineDetail":{"PostingType":"Debit","AccountRef":{"value":"33","name":"610 Repairs"},"DepartmentRef":{"value":"1","name":"Water"}}},
{"Id":"1","Amount":1500.25,"DetailType":"JournalEntryLineDetail","JournalEntryLineDetail":{"PostingType":"Credit","AccountRef":{"value":"35","name":"101 Cash"}}}]}],"startPosition":1,"maxResults":1}}`

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(config.QuickBooksConfig{
		Enabled:      true,
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/oauth2/v1/tokens/bearer",
		RealmID:      "9130",
		ClientID:     "cid",
		ClientSecret: "secret",
		AccessToken:  "old-token",
		RefreshToken: "refresh-1",
		MaxRetries:   2,
	}, nil, nil)
	c.retryInterval = time.Millisecond
	return c, srv
}

func TestClient_Enabled(t *testing.T) {
	assert.False(t, NewClient(config.QuickBooksConfig{}, nil, nil).Enabled())
	assert.False(t, NewClient(config.QuickBooksConfig{Enabled: true, AccessToken: "x"}, nil, nil).Enabled())
	assert.True(t, NewClient(config.QuickBooksConfig{Enabled: true, RealmID: "1", RefreshToken: "r"}, nil, nil).Enabled())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())

	_, err := NewClient(config.QuickBooksConfig{}, nil, nil).QueryPurchases(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_QueryJournalEntries(t *testing.T) {
	var gotQuery, gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/9130/query", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, journalBody)
	}))

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	entries, err := c.QueryJournalEntries(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Line, 2)

	line := entries[0].Line[0]
	assert.Equal(t, "1500.25", line.Amount.String())
	assert.Equal(t, "Debit", line.JournalEntryLineDetail.PostingType)
	assert.Equal(t, "610 Repairs", line.JournalEntryLineDetail.AccountRef.Name)
	assert.Equal(t, "Water", line.JournalEntryLineDetail.DepartmentRef.Name)
	assert.Nil(t, entries[0].Line[1].JournalEntryLineDetail.DepartmentRef)

	assert.Contains(t, gotQuery, "FROM JournalEntry WHERE TxnDate >= '2025-01-01' AND TxnDate <= '2025-03-31'")
	assert.Equal(t, "Bearer old-token", gotAuth)
}

func TestClient_QueryPurchasesPaginates(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		switch calls.Add(1) {
		case 1:
			assert.Contains(t, q, "STARTPOSITION 1 MAXRESULTS 2")
			fmt.Fprint(w, `{"QueryResponse":{"Purchase":[{"Id":"1","TotalAmt":10,"DepartmentRef":{"value":"1","name":"Water"}},{"Id":"2","TotalAmt":20}]}}`)
		default:
			assert.Contains(t, q, "STARTPOSITION 3 MAXRESULTS 2")
			fmt.Fprint(w, `{"QueryResponse":{"Purchase":[{"Id":"3","TotalAmt":30.5}]}}`)
		}
	}))
	c.pageSize = 2

	purchases, err := c.QueryPurchases(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	require.Len(t, purchases, 3)
	assert.Equal(t, "Water", purchases[0].DepartmentName())
	assert.Equal(t, "", purchases[1].DepartmentName())
	assert.Equal(t, "30.5", purchases[2].TotalAmt.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RefreshesTokenOn401(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/tokens/bearer", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		fmt.Fprint(w, `{"access_token":"new-token","refresh_token":"refresh-2","expires_in":3600}`)
	})
	mux.HandleFunc("/v3/company/9130/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"Fault":{"Error":[{"Message":"AuthenticationFailed"}],"type":"AUTHENTICATION"}}`)
			return
		}
		fmt.Fprint(w, journalBody)
	})
	c, _ := newTestClient(t, mux)

	entries, err := c.QueryJournalEntries(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, "new-token", c.token())
	assert.Equal(t, "refresh-2", c.refreshToken)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, journalBody)
	}))

	_, err := c.QueryJournalEntries(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.QueryJournalEntries(context.Background(), time.Now(), time.Now())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"Fault":{"Error":[{"Message":"Invalid query","Detail":"QueryParserError"}],"type":"ValidationFault"}}`)
	}))

	_, err := c.QueryJournalEntries(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "QueryParserError"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RefreshFailureIsPermanent(t *testing.T) {
	var queries atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/tokens/bearer", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	})
	mux.HandleFunc("/v3/company/9130/query", func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.QueryPurchases(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), queries.Load())
}

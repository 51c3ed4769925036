package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"peerlend/loan"
)

const profileJSON = `{
	"id": 4,
	"username": "ada",
	"rating": 4.85,
	"adress_wallet": "0x1111111111111111111111111111111111111111",
	"clean_loans": 3,
	"overdue_loans": 1,
	"offers_accepted": 5
}`

const loansJSON = `[
	{
		"id": 7,
		"lender_id": "0xaaaa",
		"borrower_id": "0xbbbb",
		"amount": 10000,
		"interest": 5,
		"collateral": 2000,
		"due_date": 600,
		"duration": 600,
		"status": "Accepted",
		"lender": {"id": 4, "username": "ada", "rating": 4.85, "adress_wallet": "0xaaaa"}
	},
	{
		"id": 8,
		"lender_id": "",
		"amount": 1,
		"interest": 0,
		"collateral": 1,
		"status": "Created"
	}
]`

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "4",
		"exp": expiry.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestProfileSendsBearerAndDecodes(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/protected/getProfile", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(profileJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, "opaque-token")
	profile, err := client.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer opaque-token", gotAuth)
	require.Equal(t, uint64(4), profile.ID)
	require.Equal(t, "ada", profile.Username)
	require.Equal(t, "0x1111111111111111111111111111111111111111", profile.WalletAddress)
	require.InDelta(t, 4.85, profile.Rating, 0.001)
	require.Equal(t, 3, profile.CleanLoans)
}

func TestLoanListDropsMalformedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/protected/getMyCredits", r.URL.Path)
		_, _ = w.Write([]byte(loansJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, "opaque-token")
	loans, err := client.MyLoans(context.Background())
	require.NoError(t, err)
	// The second record has no lender and is dropped at the ingestion
	// boundary.
	require.Len(t, loans, 1)
	require.Equal(t, uint64(7), loans[0].ID)
	require.Equal(t, loan.StatusAccepted, loans[0].Status)
	require.Equal(t, int64(10_000), loans[0].Principal.Int64())
	require.NotNil(t, loans[0].LenderProfile)
	require.Equal(t, "ada", loans[0].LenderProfile.Username)
	require.Nil(t, loans[0].BorrowerProfile)
}

func TestMissingCredential(t *testing.T) {
	client := NewClient("http://backend.invalid", "")
	_, err := client.Profile(context.Background())
	require.ErrorIs(t, err, ErrCredentialMissing)
}

func TestExpiredCredentialFailsBeforeNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	now := time.Unix(1_700_000_000, 0)
	client := NewClient(server.URL, signedToken(t, now.Add(-time.Hour)),
		WithClock(func() time.Time { return now }))
	_, err := client.Profile(context.Background())
	require.ErrorIs(t, err, ErrCredentialExpired)
	require.Zero(t, requests)
}

func TestValidCredentialPasses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	now := time.Unix(1_700_000_000, 0)
	client := NewClient(server.URL, signedToken(t, now.Add(time.Hour)),
		WithClock(func() time.Time { return now }))
	loans, err := client.OpenOffers(context.Background())
	require.NoError(t, err)
	require.Empty(t, loans)
}

func TestNonOKStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "opaque-token")
	_, err := client.MyOffers(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=401")
}

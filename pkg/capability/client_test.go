package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUpdateAvatarAppearanceParsesSuccessResponse(t *testing.T) {
	tex := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		body, err := encodeLLSD(llsdMap(map[string]llsdValue{
			"success":     {kind: "boolean", b: true},
			"cof_version": llsdInteger(7),
			"texture_id":  {kind: "array", arr: []llsdValue{{kind: "uuid", id: tex}}},
		}))
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(nil, Config{UpdateAvatarAppearanceURL: srv.URL}, nil)
	resp, err := c.UpdateAvatarAppearance(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, 7, resp.CofVersion)
	require.False(t, resp.HasExpected)
	require.Equal(t, []uuid.UUID{tex}, resp.Textures)
}

func TestUpdateAvatarAppearanceParsesExpectedMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := encodeLLSD(llsdMap(map[string]llsdValue{
			"success":  {kind: "boolean", b: false},
			"expected": llsdInteger(12),
		}))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(nil, Config{UpdateAvatarAppearanceURL: srv.URL}, nil)
	resp, err := c.UpdateAvatarAppearance(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.True(t, resp.HasExpected)
	require.Equal(t, 12, resp.Expected)
}

func TestUpdateAvatarAppearanceNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(nil, Config{UpdateAvatarAppearanceURL: srv.URL}, nil)
	_, err := c.UpdateAvatarAppearance(context.Background(), 1)
	require.Error(t, err)
}

func TestLLSDRoundTripsNestedMapAndArray(t *testing.T) {
	id := uuid.New()
	in := llsdMap(map[string]llsdValue{
		"name":  {kind: "string", str: "A&B <tag>"},
		"count": llsdInteger(3),
		"items": {kind: "array", arr: []llsdValue{
			{kind: "uuid", id: id},
			llsdInteger(42),
		}},
	})
	encoded, err := encodeLLSD(in)
	require.NoError(t, err)

	decoded, err := decodeLLSD(encoded)
	require.NoError(t, err)
	require.Equal(t, "map", decoded.kind)
	require.Equal(t, "A&B <tag>", decoded.m["name"].str)
	require.Equal(t, int64(3), decoded.m["count"].i)
	require.Len(t, decoded.m["items"].arr, 2)
	require.Equal(t, id, decoded.m["items"].arr[0].id)
	require.Equal(t, int64(42), decoded.m["items"].arr[1].i)
}

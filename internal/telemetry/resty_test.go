package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestInstrumentResty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Set-Cookie", "session=secret")
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, `{"ok":false}`)
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	rec := &Recorder{}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "test", rec, output)

	_, err = client.R().
		SetHeader("Cookie", "search=token").
		SetBody(`{"query":""}`).
		Post("/api/search/idx")
	require.NoError(t, err)

	require.Len(t, rec.Find("debug", report_resty_request), 1)
	responses := rec.Find("debug", report_resty_response)
	require.Len(t, responses, 1)
	require.Equal(t, uint64(1), responses[0].Params[0])

	contents, err := os.ReadFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	dump := string(contents)
	require.Contains(t, dump, "POST "+server.URL+"/api/search/idx")
	require.Contains(t, dump, "418")
	require.Contains(t, dump, `{"ok":false}`)
	require.NotContains(t, dump, "secret")
	require.NotContains(t, dump, "search=token")
}

func TestInstrumentRestyError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	rec := &Recorder{}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "test", rec, nil)

	_, err := client.R().Get("/api/offers/1")
	require.Error(t, err)
	require.Len(t, rec.Find("broken", report_resty_response), 1)
}

func TestNewFilesystemOutputClearsDirectory(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))

	output.Write("7", "contents")
	contents, err := os.ReadFile(filepath.Join(dir, "7.txt"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
}

func TestFormatHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-Client-Platform", "web")
	headers.Set("Accept", "application/json")
	headers.Set("Cookie", "a=b")

	require.Equal(
		t,
		"Accept: application/json\nCookie: <redacted>\nX-Client-Platform: web",
		formatHeaders(headers),
	)
	require.Equal(t, "<NO BODY AVAILABLE>", formatRequestBody(nil))
}

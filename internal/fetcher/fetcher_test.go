package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtr002/bansu-harness/internal/endpoint"
	"github.com/mtr002/bansu-harness/internal/jobs"
	"github.com/mtr002/bansu-harness/internal/outcome"
)

var cif = []byte("data_2_1_2_1_LIG\n#\n_chem_comp.id LIG\n_chem_comp.type NON-POLYMER\n")

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newTestFetcher(t *testing.T, algorithm string, handler http.HandlerFunc) (*Fetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ep, err := endpoint.Resolve(server.URL)
	require.NoError(t, err)
	return New(ep, server.Client(), algorithm, zerolog.Nop()), server
}

// chunked writes the body in small flushed pieces
func chunked(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < len(body); i += 7 {
			end := min(i+7, len(body))
			w.Write(body[i:end])
			flusher.Flush()
		}
	}
}

func TestFetchChunkedArtifact(t *testing.T) {
	var path string
	f, _ := newTestFetcher(t, "", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		chunked(cif)(w, r)
	})

	artifact, err := f.Fetch(context.Background(), "job-1")

	require.NoError(t, err)
	assert.Equal(t, "/get_cif/job-1", path)
	assert.Equal(t, cif, artifact.Data)
	assert.Equal(t, "sha256", artifact.Algorithm)
	assert.Equal(t, sha256Hex(cif), artifact.Digest)
	assert.NoError(t, artifact.DigestErr)
}

func TestFetchDigestIsDeterministic(t *testing.T) {
	f, _ := newTestFetcher(t, "sha256", chunked(cif))

	first, err := f.Fetch(context.Background(), "job-1")
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
}

func TestFetchNotFound(t *testing.T) {
	f, _ := newTestFetcher(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	artifact, err := f.Fetch(context.Background(), "missing")

	assert.Nil(t, artifact)
	oe, ok := outcome.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, oe.StatusCode)
	assert.Equal(t, outcome.ExitFetchStatus, outcome.ExitCode(outcome.FromError(outcome.StageFetch, err)))
}

func TestFetchTransportError(t *testing.T) {
	f, server := newTestFetcher(t, "", chunked(cif))
	server.Close()

	_, err := f.Fetch(context.Background(), "job-1")

	oe, ok := outcome.As(err)
	require.True(t, ok)
	assert.Equal(t, outcome.KindTransport, oe.Kind)
	assert.Zero(t, oe.StatusCode)
	assert.Equal(t, outcome.ExitFetchTransport, outcome.ExitCode(outcome.FromError(outcome.StageFetch, err)))
}

func TestFetchTruncatedTransfer(t *testing.T) {
	f, _ := newTestFetcher(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(cif)
	})

	_, err := f.Fetch(context.Background(), "job-1")

	assert.Equal(t, outcome.ExitFetchTransport, outcome.ExitCode(outcome.FromError(outcome.StageFetch, err)))
}

func TestFetchUnknownAlgorithmIsNotFatal(t *testing.T) {
	f, _ := newTestFetcher(t, "md4", chunked(cif))

	artifact, err := f.Fetch(context.Background(), "job-1")

	require.NoError(t, err)
	assert.Equal(t, cif, artifact.Data)
	assert.Empty(t, artifact.Digest)
	assert.ErrorIs(t, artifact.DigestErr, ErrUnknownAlgorithm)
}

func TestFetchEscapesHandle(t *testing.T) {
	var rawPath string
	f, _ := newTestFetcher(t, "", func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.Write(cif)
	})

	_, err := f.Fetch(context.Background(), "a/b")

	require.NoError(t, err)
	assert.Equal(t, "/get_cif/a%2Fb", rawPath)
}

func TestDigestAlgorithms(t *testing.T) {
	for _, name := range []string{"sha256", "SHA512", "sha3-256", "blake2b"} {
		a, err := Digest(name, cif)
		require.NoError(t, err, name)
		b, err := Digest(name, append([]byte{}, cif...))
		require.NoError(t, err, name)
		assert.Equal(t, a, b, name)
		assert.NotEmpty(t, a)
	}

	digest, err := Digest("", cif)
	require.NoError(t, err)
	assert.Equal(t, sha256Hex(cif), digest)

	_, err = Digest("crc32", cif)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.cif")
	artifact := &jobs.Artifact{JobID: "job-1", Data: cif}

	require.NoError(t, Save(artifact, path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cif, got)
}

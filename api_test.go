package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"img-chaos/internal/config"
	"img-chaos/internal/grid"
	"img-chaos/internal/imageio"
	"img-chaos/internal/imgcipher"
)

const testSize = 16

func testConfig(t *testing.T) appConfig {
	t.Helper()
	v := viper.New()
	v.Set("cipher.gridSize", testSize)
	cfg, err := loadConfig(v, "")
	require.NoError(t, err)
	cfg.Server.StorePath = filepath.Join(t.TempDir(), "store.json")
	return cfg
}

func newTestServer(t *testing.T) (*httptest.Server, *ledger) {
	t.Helper()
	cfg := testConfig(t)
	c, err := imgcipher.New(cfg.Cipher)
	require.NoError(t, err)
	l := newLedger(cfg.Server.StorePath, zap.NewNop())
	require.NoError(t, l.open())
	ts := httptest.NewServer(newServer(cfg, c, l, zap.NewNop()).routes())
	t.Cleanup(ts.Close)
	return ts, l
}

func testPlain(t *testing.T) grid.Image {
	t.Helper()
	img, err := grid.Checkerboard(testSize, 0, 255)
	require.NoError(t, err)
	img.Set(3, 5, 7)
	return img
}

func testPNG(t *testing.T, img grid.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imageio.Write(&buf, img, imageio.Grayscale()))
	return buf.Bytes()
}

// multipartBody builds a form with the given text fields and files.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".dat")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postForm(t *testing.T, url string, fields map[string]string, files map[string][]byte) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, fields, files)
	resp, err := http.Post(url, ct, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func encryptUpload(t *testing.T, ts *httptest.Server, plain grid.Image, pass string) string {
	t.Helper()
	resp := postForm(t, ts.URL+"/encrypt", map[string]string{"passphrase": pass}, map[string][]byte{"image": testPNG(t, plain)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		TxID      string `json:"tx_id"`
		Published string `json:"published"`
		Block     Block  `json:"block"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.TxID)
	assert.Equal(t, out.Published, out.Block.DataHash)
	return out.TxID
}

func TestEncryptDecryptOverHTTP(t *testing.T) {
	ts, l := newTestServer(t)
	plain := testPlain(t)
	id := encryptUpload(t, ts, plain, "test-key")

	t.Run("png", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tx/" + id + "/png")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		img, _, err := imageio.Load(resp.Body, testSize)
		require.NoError(t, err)
		rec, err := l.get(id)
		require.NoError(t, err)
		assert.True(t, img.Equal(rec.Cipher))
		assert.False(t, img.Equal(plain))
	})

	t.Run("info", func(t *testing.T) {
		var info map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/tx/"+id+"/info", &info))
		assert.Equal(t, id, info["tx_id"])
		assert.NotContains(t, info, "plain_hash")
		assert.NotContains(t, info, "cipher")
	})

	t.Run("verify", func(t *testing.T) {
		var v map[string]bool
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/tx/"+id+"/verify", &v))
		for _, k := range []string{"chain_valid", "tx_found", "cipher_hash_match", "bundle_hash_match", "published_match", "bundle_valid", "published_in_chain"} {
			assert.True(t, v[k], k)
		}
	})

	t.Run("stats", func(t *testing.T) {
		var st struct {
			N        int `json:"n"`
			Security struct {
				NPCR float64 `json:"npcr"`
			} `json:"security"`
		}
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/tx/"+id+"/stats", &st))
		assert.Equal(t, testSize*testSize*8, st.N)
		assert.Greater(t, st.Security.NPCR, 0.0)
	})

	t.Run("decrypt with stored bundle", func(t *testing.T) {
		resp := postForm(t, ts.URL+"/tx/"+id+"/decrypt", map[string]string{"passphrase": "test-key"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got, _, err := imageio.Load(resp.Body, testSize)
		require.NoError(t, err)
		assert.True(t, got.Equal(plain))
	})

	t.Run("decrypt with uploaded binary bundle", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tx/" + id + "/bundle?format=bin")
		require.NoError(t, err)
		var wire bytes.Buffer
		_, err = wire.ReadFrom(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

		dec := postForm(t, ts.URL+"/tx/"+id+"/decrypt", map[string]string{"passphrase": "test-key"}, map[string][]byte{"bundle": wire.Bytes()})
		require.Equal(t, http.StatusOK, dec.StatusCode)
		got, _, err := imageio.Load(dec.Body, testSize)
		require.NoError(t, err)
		assert.True(t, got.Equal(plain))
	})

	t.Run("wrong passphrase yields a different image", func(t *testing.T) {
		resp := postForm(t, ts.URL+"/tx/"+id+"/decrypt", map[string]string{"passphrase": "test-kez"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got, _, err := imageio.Load(resp.Body, testSize)
		require.NoError(t, err)
		assert.False(t, got.Equal(plain))
	})

	t.Run("listing and chain", func(t *testing.T) {
		var txs []map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/txs", &txs))
		require.Len(t, txs, 1)
		assert.NotContains(t, txs[0], "plain_hash")
		var chain []Block
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/chain", &chain))
		require.Len(t, chain, 1)
		assert.Equal(t, id, chain[0].TxID)
	})
}

func TestHTTPErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	id := encryptUpload(t, ts, testPlain(t), "k")

	t.Run("unknown tx", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tx/does-not-exist/info")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown action", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tx/" + id + "/nope")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("encrypt needs POST", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/encrypt")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("empty passphrase", func(t *testing.T) {
		resp := postForm(t, ts.URL+"/encrypt", map[string]string{"passphrase": ""}, map[string][]byte{"image": testPNG(t, testPlain(t))})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not an image", func(t *testing.T) {
		resp := postForm(t, ts.URL+"/encrypt", map[string]string{"passphrase": "k"}, map[string][]byte{"image": []byte("plain text")})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing file", func(t *testing.T) {
		resp := postForm(t, ts.URL+"/encrypt", map[string]string{"passphrase": "k"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("mismatched bundle", func(t *testing.T) {
		other := &imgcipher.KeyBundle{Size: 2}
		var buf bytes.Buffer
		require.NoError(t, encodeBundle(&buf, other, bundleFormatJSON))
		resp := postForm(t, ts.URL+"/tx/"+id+"/decrypt", map[string]string{"passphrase": "k"}, map[string][]byte{"bundle": buf.Bytes()})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("short image digest", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tx/" + id + "/bundle")
		require.NoError(t, err)
		var b imgcipher.KeyBundle
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
		resp.Body.Close()
		b.Keying = config.KeyingImage
		b.ImageDigest = []byte{1, 2, 3, 4, 5}

		var buf bytes.Buffer
		require.NoError(t, encodeBundle(&buf, &b, bundleFormatBin))
		dec := postForm(t, ts.URL+"/tx/"+id+"/decrypt", map[string]string{"passphrase": "k"}, map[string][]byte{"bundle": buf.Bytes()})
		assert.Equal(t, http.StatusUnprocessableEntity, dec.StatusCode)
	})

	t.Run("bad bundle format", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/tx/" + id + "/bundle?format=xml")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUploadStats(t *testing.T) {
	ts, _ := newTestServer(t)
	bits := bytes.Repeat([]byte("0110100111"), 20)

	resp, err := http.Post(ts.URL+"/stats/upload?mode=txt", "text/plain", bytes.NewReader(bits))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		N      int               `json:"n"`
		Report []json.RawMessage `json:"report"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, len(bits), out.N)
	assert.Len(t, out.Report, 8)

	bad, err := http.Post(ts.URL+"/stats/upload?mode=txt", "text/plain", bytes.NewReader([]byte("xyz")))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestLedgerSurvivesRestart(t *testing.T) {
	ts, l := newTestServer(t)
	id := encryptUpload(t, ts, testPlain(t), "persist")

	reopened := newLedger(l.path, zap.NewNop())
	require.NoError(t, reopened.open())
	rec, err := reopened.get(id)
	require.NoError(t, err)
	assert.True(t, reopened.validateChain())

	c, err := imgcipher.New(testConfig(t).Cipher)
	require.NoError(t, err)
	plain, err := c.DecryptImage(rec.Cipher, "persist", rec.Bundle)
	require.NoError(t, err)
	assert.Equal(t, rec.PlainHash, sha256Hex(plain.Pix))
}

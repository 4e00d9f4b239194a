package main

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"img-chaos/internal/metrics"
	"img-chaos/internal/nist"
)

// GET /tx/{id}/stats - the encryption-time security report plus the raw
// randomness figures of the cipher bit stream.
func (s *server) txStats(w http.ResponseWriter, r *http.Request, rec *Record) {
	bits := nist.UnpackBitsMSB(rec.Cipher.Pix)
	tests, report := nist.ComputeAllTests(bits)
	resp := map[string]any{
		"tx_id":   rec.TxID,
		"n":       len(bits),
		"entropy": metrics.Entropy(rec.Cipher),
		"tests":   sanitizeForJSON(tests),
		"report":  report,
	}
	if rec.Report != nil {
		resp["security"] = rec.Report
	}
	writeJSON(w, resp)
}

// POST /stats/upload - body is a 0/1 string, raw bytes, or multipart with a
// file (txt/bin). ?mode=txt|bin01|binpacked overrides detection.
func (s *server) uploadStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	var bits []int
	var err error
	modeParam := r.URL.Query().Get("mode")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		bits, err = s.bitsFromMultipart(r, modeParam)
	} else {
		var body []byte
		if body, err = io.ReadAll(r.Body); err == nil {
			bits, err = nist.ParseBits(body, nist.ModeFromString(modeParam))
		}
	}
	if err != nil {
		s.log.Debug("stats upload rejected", zap.Error(err))
		http.Error(w, "failed to parse bits: "+err.Error(), http.StatusBadRequest)
		return
	}

	tests, report := nist.ComputeAllTests(bits)
	writeJSON(w, map[string]any{
		"n":      len(bits),
		"tests":  sanitizeForJSON(tests),
		"report": report,
	})
}

func (s *server) bitsFromMultipart(r *http.Request, modeParam string) ([]int, error) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		return nil, err
	}
	if modeParam == "" {
		modeParam = r.FormValue("mode")
	}
	data, name, err := formFile(r, "file")
	if err != nil {
		// the bits may come as a plain field
		if str := r.FormValue("bits"); str != "" {
			return nist.BitsFromString(str)
		}
		return nil, fmt.Errorf("no file provided")
	}

	mode := nist.ModeFromString(modeParam)
	if mode == nist.FileModeUnknown {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt":
			mode = nist.FileModeTXT
		case ".bin", ".dat", ".raw":
			mode = nist.GuessBinMode(data)
		}
	}
	return nist.ParseBits(data, mode)
}

// sanitizeForJSON recursively replaces NaN/Inf with nil so encoding/json
// doesn't fail with "json: unsupported value: NaN".
func sanitizeForJSON(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return sanitizeForJSON(float64(t))
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		bool, string:
		return t
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = sanitizeForJSON(val)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = sanitizeForJSON(el)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = sanitizeForJSON(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any)
		for _, key := range rv.MapKeys() {
			out[fmt.Sprint(key.Interface())] = sanitizeForJSON(rv.MapIndex(key).Interface())
		}
		return out
	default:
		return v
	}
}

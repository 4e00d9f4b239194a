package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"img-chaos/internal/config"
	"img-chaos/internal/grid"
	"img-chaos/internal/imageio"
	"img-chaos/internal/imgcipher"
	"img-chaos/internal/keysched"
	"img-chaos/internal/metrics"
)

const publishedLabel = "published-hash-v1"

type server struct {
	cfg    appConfig
	cipher *imgcipher.Cipher
	ledger *ledger
	log    *zap.Logger
}

func newServer(cfg appConfig, c *imgcipher.Cipher, l *ledger, log *zap.Logger) *server {
	return &server{cfg: cfg, cipher: c, ledger: l, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/encrypt", s.encryptHandler)
	mux.HandleFunc("/tx/", s.txRouter)
	mux.HandleFunc("/txs", s.txsHandler)
	mux.HandleFunc("/chain", s.chainHandler)
	mux.HandleFunc("/stats/upload", s.uploadStatsHandler)
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	return c.Handler(mux)
}

// ======= helpers =======

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func settingsOf(cfg config.Cipher, b *imgcipher.KeyBundle) CipherSettings {
	st := CipherSettings{
		Size:      b.Size,
		Scramble:  string(b.Scramble),
		Keying:    string(b.Keying),
		Keystream: string(b.Keystream),
		Combine:   string(b.Combine),
	}
	if b.Scramble == config.ScrambleHilbertFractal {
		st.FractalOrder = cfg.FractalOrder
	}
	return st
}

// buildRecord encrypts plain and fills every derived field of the record.
func buildRecord(c *imgcipher.Cipher, plain grid.Image, pal color.Palette, passphrase, source string) (*Record, error) {
	enc, bundle, err := c.EncryptImage(plain, passphrase)
	if err != nil {
		return nil, err
	}
	wire, err := bundle.MarshalBinary()
	if err != nil {
		return nil, err
	}
	report, err := metrics.SecurityReport(plain, enc)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		TxID:       newTxID(),
		CreatedAt:  time.Now().UTC(),
		Source:     source,
		Settings:   settingsOf(c.Config(), bundle),
		Cipher:     enc,
		Palette:    paletteToHex(pal),
		Bundle:     bundle,
		PlainHash:  sha256Hex(plain.Pix),
		CipherHash: sha256Hex(enc.Pix),
		BundleHash: sha256Hex(wire),
		Report:     &report,
	}
	rec.Published = publishedHash(rec.CipherHash, rec.BundleHash)
	return rec, nil
}

// publishedHash = SHA256(cipherHash || bundleHash || label).
func publishedHash(cipherHash, bundleHash string) string {
	return sha256Hex([]byte(cipherHash + bundleHash + publishedLabel))
}

// httpStatus maps pipeline errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, imgcipher.ErrPermutationMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, grid.ErrInvalidDimension),
		errors.Is(err, keysched.ErrKeyDerivation),
		errors.Is(err, imageio.ErrDecode),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// formFile returns the first uploaded file among names.
func formFile(r *http.Request, names ...string) ([]byte, string, error) {
	for _, name := range names {
		f, fh, err := r.FormFile(name)
		if err != nil {
			continue
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return data, fh.Filename, nil
	}
	return nil, "", fmt.Errorf("%w: no file field %s", errBadRequest, strings.Join(names, "/"))
}

func (s *server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// ======= handlers =======

// POST /encrypt  multipart: image=<file>, passphrase=<text>
func (s *server) encryptHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.parseForm(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	data, name, err := formFile(r, "image", "file")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	plain, pal, err := imageio.Load(bytes.NewReader(data), s.cfg.Cipher.GridSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := buildRecord(s.cipher, plain, pal, r.FormValue("passphrase"), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	blk := s.ledger.add(rec)
	s.log.Info("encrypted image",
		zap.String("tx_id", rec.TxID),
		zap.String("source", name),
		zap.Int("size", rec.Settings.Size),
		zap.String("scramble", rec.Settings.Scramble),
		zap.Int("block", blk.Index))

	writeJSON(w, map[string]any{
		"tx_id":       rec.TxID,
		"created_at":  rec.CreatedAt.Format(time.RFC3339),
		"settings":    rec.Settings,
		"cipher_hash": rec.CipherHash,
		"bundle_hash": rec.BundleHash,
		"published":   rec.Published,
		"block":       blk,
	})
}

func (s *server) chainHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ledger.blocks())
}

// /tx/{id}/png  /bundle  /info  /verify  /stats  /decrypt
func (s *server) txRouter(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/tx/")
	parts := strings.SplitN(p, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing tx id", http.StatusBadRequest)
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	rec, err := s.ledger.get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch action {
	case "png":
		s.txPNG(w, r, rec)
	case "bundle":
		s.txBundle(w, r, rec)
	case "info", "":
		s.txInfo(w, r, rec)
	case "verify":
		s.txVerify(w, r, rec)
	case "stats":
		s.txStats(w, r, rec)
	case "decrypt":
		s.txDecrypt(w, r, rec)
	default:
		s.log.Debug("unknown tx action", zap.String("action", action), zap.String("tx_id", id))
		http.Error(w, "unknown tx action", http.StatusNotFound)
	}
}

func (s *server) txPNG(w http.ResponseWriter, r *http.Request, rec *Record) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s.png\"", rec.TxID))
	if err := writePNG(w, rec.Cipher, rec.Palette); err != nil {
		s.log.Error("png encode failed", zap.String("tx_id", rec.TxID), zap.Error(err))
	}
}

// /tx/{id}/bundle?format=json|bin
func (s *server) txBundle(w http.ResponseWriter, r *http.Request, rec *Record) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = bundleFormatJSON
	}
	var buf bytes.Buffer
	if err := encodeBundle(&buf, rec.Bundle, format); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if format == bundleFormatBin {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.bundle\"", rec.TxID))
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.bundle.json\"", rec.TxID))
	}
	_, _ = w.Write(buf.Bytes())
}

// POST /tx/{id}/decrypt  passphrase=<text>, optional bundle=<file>
func (s *server) txDecrypt(w http.ResponseWriter, r *http.Request, rec *Record) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.parseForm(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	bundle := rec.Bundle
	if data, _, err := formFile(r, "bundle"); err == nil {
		if bundle, err = decodeBundle(data); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	plain, err := s.cipher.DecryptImage(rec.Cipher, r.FormValue("passphrase"), bundle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("decrypted image", zap.String("tx_id", rec.TxID), zap.Bool("plain_hash_match", sha256Hex(plain.Pix) == rec.PlainHash))
	w.Header().Set("Content-Type", "image/png")
	if err := writePNG(w, plain, rec.Palette); err != nil {
		s.log.Error("png encode failed", zap.String("tx_id", rec.TxID), zap.Error(err))
	}
}

func (s *server) txVerify(w http.ResponseWriter, r *http.Request, rec *Record) {
	wire, err := rec.Bundle.MarshalBinary()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cipherHash := sha256Hex(rec.Cipher.Pix)
	bundleHash := sha256Hex(wire)
	resp := map[string]any{
		"chain_valid":        s.ledger.validateChain(),
		"tx_found":           true,
		"cipher_hash_match":  cipherHash == rec.CipherHash,
		"bundle_hash_match":  bundleHash == rec.BundleHash,
		"published_match":    publishedHash(cipherHash, bundleHash) == rec.Published,
		"bundle_valid":       rec.Bundle.Validate(rec.Cipher.Size) == nil,
		"published_in_chain": false,
	}
	if blk, ok := s.ledger.blockFor(rec.TxID); ok {
		resp["published_in_chain"] = blk.DataHash == rec.Published
	}
	writeJSON(w, resp)
}

// recordSummary omits pixel data, permutations and the plaintext hash.
func recordSummary(rec *Record) map[string]any {
	return map[string]any{
		"tx_id":       rec.TxID,
		"created_at":  rec.CreatedAt.Format(time.RFC3339),
		"source":      rec.Source,
		"settings":    rec.Settings,
		"cipher_hash": rec.CipherHash,
		"bundle_hash": rec.BundleHash,
		"published":   rec.Published,
	}
}

func (s *server) txInfo(w http.ResponseWriter, r *http.Request, rec *Record) {
	out := recordSummary(rec)
	out["png_url"] = "/tx/" + rec.TxID + "/png"
	out["bundle_url"] = "/tx/" + rec.TxID + "/bundle"
	out["decrypt_url"] = "/tx/" + rec.TxID + "/decrypt"
	writeJSON(w, out)
}

// /txs - record summaries, oldest first
func (s *server) txsHandler(w http.ResponseWriter, r *http.Request) {
	recs := s.ledger.list()
	list := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		list = append(list, recordSummary(rec))
	}
	writeJSON(w, list)
}

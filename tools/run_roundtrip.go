//go:build tools
// +build tools

package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"img-chaos/internal/imageio"
)

// Encrypts an image through a running server, decrypts it again and checks
// the returned pixel indices against the image loaded locally at the same size.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: run_roundtrip <image> <passphrase>")
		os.Exit(2)
	}
	base := "http://localhost:4040"
	img, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		os.Exit(1)
	}

	resp, err := postMultipart(base+"/encrypt", map[string]string{"passphrase": os.Args[2]}, "image", filepath.Base(os.Args[1]), img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt request failed: %v\n", err)
		os.Exit(1)
	}
	var enc map[string]interface{}
	if err := json.Unmarshal(resp, &enc); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse encrypt JSON: %v\n", err)
		os.Exit(1)
	}
	id, _ := enc["tx_id"].(string)
	if id == "" {
		fmt.Fprintln(os.Stderr, "no tx_id in encrypt response")
		os.Exit(1)
	}
	fmt.Println("encrypted tx:", id)

	// fetch info
	r, err := http.Get(base + "/tx/" + id + "/info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "info request failed: %v\n", err)
		os.Exit(1)
	}
	infoBody, _ := io.ReadAll(r.Body)
	r.Body.Close()
	var info map[string]interface{}
	if err := json.Unmarshal(infoBody, &info); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse info JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("--- /tx/" + id + "/info ---")
	fmt.Println(string(infoBody))

	// decrypt
	dec, err := postMultipart(base+"/tx/"+id+"/decrypt", map[string]string{"passphrase": os.Args[2]}, "", "", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decrypt request failed: %v\n", err)
		os.Exit(1)
	}
	m, _, err := image.Decode(bytes.NewReader(dec))
	if err != nil {
		fmt.Fprintf(os.Stderr, "decrypt response is not an image: %v\n", err)
		os.Exit(1)
	}
	p, ok := m.(*image.Paletted)
	if !ok {
		fmt.Fprintln(os.Stderr, "decrypted image is not paletted")
		os.Exit(1)
	}
	settings, _ := info["settings"].(map[string]interface{})
	size, _ := settings["size"].(float64)
	local, _, err := imageio.Load(bytes.NewReader(img), int(size))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load image locally: %v\n", err)
		os.Exit(1)
	}
	want := sha256.Sum256(local.Pix)
	got := sha256.Sum256(p.Pix)
	fmt.Println("plain hash (local):    ", hex.EncodeToString(want[:]))
	fmt.Println("plain hash (decrypted):", hex.EncodeToString(got[:]))
	if want != got {
		fmt.Fprintln(os.Stderr, "round trip mismatch")
		os.Exit(1)
	}
	fmt.Println("round trip ok")
}

func postMultipart(url string, fields map[string]string, fileField, fileName string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			return nil, err
		}
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	return b, nil
}

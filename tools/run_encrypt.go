//go:build tools
// +build tools

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: run_encrypt <image> <passphrase> [base-url]")
		os.Exit(2)
	}
	base := "http://localhost:4040"
	if len(os.Args) > 3 {
		base = os.Args[3]
	}
	img, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		os.Exit(1)
	}

	// 1) encrypt
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("passphrase", os.Args[2])
	fw, _ := mw.CreateFormFile("image", filepath.Base(os.Args[1]))
	_, _ = fw.Write(img)
	_ = mw.Close()
	resp, err := http.Post(base+"/encrypt", mw.FormDataContentType(), &body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println("--- /encrypt response ---")
	fmt.Println(string(b))
	var enc map[string]interface{}
	if err := json.Unmarshal(b, &enc); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse encrypt JSON: %v\n", err)
		os.Exit(1)
	}
	id, _ := enc["tx_id"].(string)
	if id == "" {
		fmt.Fprintln(os.Stderr, "no tx_id in encrypt response")
		os.Exit(1)
	}

	// 2) stats
	resp2, err := http.Get(base + "/tx/" + id + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp2.Body.Close()
	b2, _ := io.ReadAll(resp2.Body)
	fmt.Println("--- /tx/" + id + "/stats response ---")
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, b2, "", "  "); err != nil {
		fmt.Println(string(b2))
		return
	}
	fmt.Println(pretty.String())
}

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// httpCmd calls the server's control API and prints the response body.
func httpCmd(name string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", envOr("LS_ADMIN_URL", "http://127.0.0.1:8080"), "server base url")
	id := fs.Uint64("id", 0, "container id (open)")
	set := fs.String("set", "", "json body to PATCH into the config (config)")
	reset := fs.Bool("reset", false, "reset the config to defaults (config)")
	_ = fs.Parse(args)

	method, path, body, err := buildRequest(name, *id, *set, *reset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	status, out, err := doRequest(&http.Client{Timeout: 10 * time.Second}, method, strings.TrimRight(strings.TrimSpace(*baseURL), "/")+path, body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if status/100 != 2 {
		os.Exit(1)
	}
}

func buildRequest(name string, id uint64, set string, reset bool) (method, path, body string, err error) {
	switch name {
	case "state":
		return http.MethodGet, "/v1/state", "", nil
	case "scan":
		return http.MethodPost, "/v1/scan", "", nil
	case "reset":
		return http.MethodPost, "/v1/reset", "", nil
	case "snapshot":
		return http.MethodPost, "/v1/snapshot", "", nil
	case "ready":
		return http.MethodPost, "/v1/world/ready", "", nil
	case "teardown":
		return http.MethodPost, "/v1/world/teardown", "", nil
	case "open":
		if id == 0 {
			return "", "", "", fmt.Errorf("missing -id")
		}
		return http.MethodPost, fmt.Sprintf("/v1/containers/%d/open", id), "", nil
	case "config":
		switch {
		case reset:
			return http.MethodDelete, "/v1/config", "", nil
		case strings.TrimSpace(set) != "":
			return http.MethodPatch, "/v1/config", set, nil
		default:
			return http.MethodGet, "/v1/config", "", nil
		}
	}
	return "", "", "", fmt.Errorf("unknown command %q", name)
}

func doRequest(cl *http.Client, method, url, body string) (int, []byte, error) {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		return 0, nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := cl.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

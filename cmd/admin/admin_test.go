package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lootsweep.ai/internal/persistence/indexdb"
)

func TestBuildRequest(t *testing.T) {
	cases := []struct {
		name   string
		id     uint64
		set    string
		reset  bool
		method string
		path   string
	}{
		{name: "state", method: http.MethodGet, path: "/v1/state"},
		{name: "scan", method: http.MethodPost, path: "/v1/scan"},
		{name: "open", id: 7, method: http.MethodPost, path: "/v1/containers/7/open"},
		{name: "config", method: http.MethodGet, path: "/v1/config"},
		{name: "config", set: `{"pickup_radius":5}`, method: http.MethodPatch, path: "/v1/config"},
		{name: "config", reset: true, method: http.MethodDelete, path: "/v1/config"},
	}
	for _, tc := range cases {
		method, path, _, err := buildRequest(tc.name, tc.id, tc.set, tc.reset)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if method != tc.method || path != tc.path {
			t.Fatalf("%s got=%s %s want=%s %s", tc.name, method, path, tc.method, tc.path)
		}
	}
	if _, _, _, err := buildRequest("open", 0, "", false); err == nil {
		t.Fatalf("expected error for open without id")
	}
}

func TestDoRequest_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		if r.Method != http.MethodPatch || r.Header.Get("Content-Type") != "application/json" {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = rw.Write(buf.Bytes())
	}))
	defer srv.Close()

	status, body, err := doRequest(srv.Client(), http.MethodPatch, srv.URL+"/v1/config", `{"a":1}`)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if status != http.StatusOK || string(body) != `{"a":1}` {
		t.Fatalf("got=%d %q", status, body)
	}
}

type fakeIndex struct{}

func (fakeIndex) RecentTransfers(context.Context, int) ([]indexdb.TransferRow, error) {
	return []indexdb.TransferRow{{Tick: 12, SessionID: "s1", Mode: "default", ItemName: "Cash", Count: 1500, ContainerName: "crate"}}, nil
}

func (fakeIndex) ItemTotals(context.Context) ([]indexdb.ItemTotal, error) {
	return []indexdb.ItemTotal{{TypeID: 451, ItemName: "Cash", Transfers: 3, Count: 12000}}, nil
}

func (fakeIndex) PassCounts(context.Context) (int64, int64, error) { return 40, 2, nil }

func (fakeIndex) LatestSnapshot(context.Context) (indexdb.SnapshotRow, bool, error) {
	return indexdb.SnapshotRow{Tick: 6000, Containers: 9}, true, nil
}

func TestRunQuery(t *testing.T) {
	var out bytes.Buffer
	if err := runQuery(context.Background(), &out, fakeIndex{}, "summary", 10); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out.String(), "items_moved=12,000") || !strings.Contains(out.String(), "tick=6000") {
		t.Fatalf("summary output:\n%s", out.String())
	}

	out.Reset()
	if err := runQuery(context.Background(), &out, fakeIndex{}, "transfers", 10); err != nil {
		t.Fatalf("transfers: %v", err)
	}
	if !strings.Contains(out.String(), "Cash x1500") {
		t.Fatalf("transfers output:\n%s", out.String())
	}

	if err := runQuery(context.Background(), &out, fakeIndex{}, "bogus", 10); err == nil {
		t.Fatalf("expected error for unknown query")
	}
}

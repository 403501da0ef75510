package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

const quoteResponse = `<?xml version="1.0" encoding="utf-8"?>` +
	`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
	`<GetQuoteResponse><Price>42.5</Price></GetQuoteResponse>` +
	`</soap:Body></soap:Envelope>`

func writeConfig(t *testing.T, url string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servicetools.yaml")
	body := "service:\n  backend: soap\nlog:\n  backend: none\ncache:\n  provider: memory\nsoap:\n  url: " + url + "\n  mapping:\n    array: [\"*\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{`{"symbol":"ACME"}`, "42", "plain text", "[1,2]"})
	if m, ok := got[0].(map[string]any); !ok || m["symbol"] != "ACME" {
		t.Fatalf("arg 0: %#v", got[0])
	}
	if got[1] != float64(42) {
		t.Fatalf("arg 1: %#v", got[1])
	}
	if got[2] != "plain text" {
		t.Fatalf("arg 2: %#v", got[2])
	}
	if l, ok := got[3].([]any); !ok || len(l) != 2 {
		t.Fatalf("arg 3: %#v", got[3])
	}
}

func TestKeyIsStable(t *testing.T) {
	cfg := writeConfig(t, "http://quotes.example.org/StockQuote.asmx?WSDL")
	a, err := run(t, "-c", cfg, "key", "GetQuote", `{"symbol":"ACME"}`)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	b, err := run(t, "-c", cfg, "key", "GetQuote", `{"symbol":"ACME"}`)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if a != b || !strings.HasPrefix(a, "soap:GetQuote:") {
		t.Fatalf("keys differ or are malformed: %q %q", a, b)
	}
	c, _ := run(t, "-c", cfg, "key", "GetQuote", `{"symbol":"OTHER"}`)
	if c == a {
		t.Fatalf("different args must produce different keys")
	}
}

func TestInvokeAndCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, quoteResponse)
	}))
	defer srv.Close()
	cfg := writeConfig(t, srv.URL)

	out, err := run(t, "-c", cfg, "invoke", "GetQuote", `{"symbol":"ACME"}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.HasPrefix(out, "OK") || !strings.Contains(out, `"Price": "42.5"`) {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = run(t, "-c", cfg, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, `soap backend "soap"`) || !strings.Contains(out, "cache: enabled") {
		t.Fatalf("unexpected check output %q", out)
	}
}

func TestInvokeFailedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`+
			`<soap:Fault><faultcode>soap:Server</faultcode><faultstring>down</faultstring></soap:Fault></soap:Body></soap:Envelope>`)
	}))
	defer srv.Close()

	out, err := run(t, "-c", writeConfig(t, srv.URL), "invoke", "-q", "GetQuote")
	if !errors.Is(err, errFailedResponse) {
		t.Fatalf("want errFailedResponse, got %v", err)
	}
	if strings.HasPrefix(out, "ERROR") || !strings.Contains(out, `"error": "down"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCheckReportsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("service:\n  backend: soap\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "-c", path, "check")
	if err == nil || !strings.Contains(out, "configuration:") {
		t.Fatalf("expected configuration failure, got %q %v", out, err)
	}
}

package utils

import (
	"bytes"
	"io"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func TestSafeTitle(t *testing.T) {
	if got := SafeTitle(`A/B\C`); got != "A_B_C" {
		t.Fatalf("expected A_B_C, got %q", got)
	}
	if got := SafeTitle("诡秘之主"); got != "诡秘之主" {
		t.Fatalf("title changed: %q", got)
	}
}

func TestAbsUrl(t *testing.T) {
	cases := map[string]string{
		"//book.qidian.com/info/1": "https://book.qidian.com/info/1",
		"/book/1":                  "https://m.qidian.com/book/1",
		"https://x.com/a":          "https://x.com/a",
	}
	for in, want := range cases {
		if got := AbsUrl(in, "https://m.qidian.com"); got != want {
			t.Fatalf("AbsUrl(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseHTMLDecodesGBK(t *testing.T) {
	page := `<html><body><h1 class="title">测试小说</h1></body></html>`
	encoded, err := io.ReadAll(transform.NewReader(bytes.NewReader([]byte(page)), simplifiedchinese.GBK.NewEncoder()))
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	doc, err := ParseHTML(encoded, "text/html; charset=gbk")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if got := doc.Find(".title").Text(); got != "测试小说" {
		t.Fatalf("expected decoded title, got %q", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("一二三四", 2); got != "一二" {
		t.Fatalf("unexpected snippet %q", got)
	}
}

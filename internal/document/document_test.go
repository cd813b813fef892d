package document_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/order-history-export/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	t.Parallel()

	doc, err := document.ParseString(`<html><body><div class="order-card">x</div></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(".order-card").Length())
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<table><tr><td>注文日 2021/1/2</td></tr></table>`), 0o644))

	doc, err := document.ParseFile(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Find("td").Text(), "2021/1/2")

	_, err = document.ParseFile(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

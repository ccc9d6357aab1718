package dump

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikicite/models"
)

const sampleDump = `<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.10/" version="0.10" xml:lang="en">
  <siteinfo>
    <sitename>Wikipedia</sitename>
    <namespaces><namespace key="0" case="first-letter" /></namespaces>
  </siteinfo>
  <page>
    <title>Foo</title>
    <ns>0</ns>
    <id>42</id>
    <revision>
      <id>100</id>
      <timestamp>2020-01-01T00:00:00Z</timestamp>
      <contributor><username>Alice</username><id>7</id></contributor>
      <text bytes="30" xml:space="preserve">Text&lt;ref&gt;{{cite web|title=A}}&lt;/ref&gt;</text>
    </revision>
    <revision>
      <id>101</id>
      <timestamp>2020-01-02T00:00:00Z</timestamp>
      <text deleted="deleted" />
    </revision>
    <revision>
      <timestamp>2020-01-03T00:00:00Z</timestamp>
      <text>ohne ID</text>
    </revision>
  </page>
  <page>
    <title>Talk:Foo</title>
    <ns>1</ns>
    <id>43</id>
    <revision>
      <id>200</id>
      <timestamp>2020-02-01T00:00:00Z</timestamp>
      <text>Diskussion</text>
    </revision>
  </page>
  <page>
    <title>Kaputt</title>
    <ns>kein</ns>
    <id>44</id>
    <revision>
      <id>300</id>
      <timestamp>2020-03-01T00:00:00Z</timestamp>
      <text>x</text>
    </revision>
  </page>
</mediawiki>`

func readAll(t *testing.T, r *Reader) []*models.Revision {
	t.Helper()
	var revs []*models.Revision
	for {
		rev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return revs
		}
		require.NoError(t, err)
		revs = append(revs, rev)
	}
}

func TestReaderPlain(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleDump), "history1.xml")
	require.NoError(t, err)
	defer r.Close()

	revs := readAll(t, r)
	require.Len(t, revs, 3)

	assert.Equal(t, models.Revision{
		Title:      "Foo",
		Namespace:  0,
		PageID:     42,
		RevisionID: 100,
		Timestamp:  "2020-01-01 00:00:00",
		Text:       "Text<ref>{{cite web|title=A}}</ref>",
	}, *revs[0])

	assert.Equal(t, int64(101), revs[1].RevisionID)
	assert.Equal(t, "", revs[1].Text)

	// Seitenfelder gehören zur jeweiligen Seite, die Contributor-ID wird nicht als Seiten-ID gelesen
	assert.Equal(t, "Talk:Foo", revs[2].Title)
	assert.Equal(t, 1, revs[2].Namespace)
	assert.Equal(t, int64(43), revs[2].PageID)
	assert.False(t, revs[2].InMainNamespace())

	// Revision ohne ID und Seite mit ungültigem Namensraum
	assert.Equal(t, 2, r.Skipped())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderGzipFile(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleDump))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "enwiki-history1.xml-p1p2.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	revs := readAll(t, r)
	require.NoError(t, r.Close())

	assert.Len(t, revs, 3)
	assert.Equal(t, 2, r.Skipped())
}

func TestReaderInvalidGzip(t *testing.T) {
	_, err := NewReader(strings.NewReader("kein gzip"), "x.gz")
	assert.Error(t, err)
}

func TestReaderTruncated(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleDump[:len(sampleDump)/2]), "x.xml")
	require.NoError(t, err)

	var lastErr error
	for {
		_, lastErr = r.Next()
		if lastErr != nil {
			break
		}
	}
	assert.Error(t, lastErr)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "fehlt.xml"))
	assert.Error(t, err)
}

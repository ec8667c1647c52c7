package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

const monarchs = `document_id,title,url,content
0,Gustav Vasa,https://sv.wikipedia.org/wiki/Gustav_Vasa,"Gustav Vasa var kung av Sverige. Han regerade 1523–1560."
1,Erik XIV,https://sv.wikipedia.org/wiki/Erik_XIV,"Erik XIV var son till Gustav Vasa.
Han avsattes 1568."
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadCSV(t *testing.T) {
	docs, err := ReadCSV(strings.NewReader(monarchs))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, domain.Document{
		ID:      0,
		Title:   "Gustav Vasa",
		URL:     "https://sv.wikipedia.org/wiki/Gustav_Vasa",
		Content: "Gustav Vasa var kung av Sverige. Han regerade 1523–1560.",
	}, docs[0])
	assert.Equal(t, "Erik XIV var son till Gustav Vasa.\nHan avsattes 1568.", docs[1].Content)
}

func TestReadCSV_ColumnOrderIsFree(t *testing.T) {
	docs, err := ReadCSV(strings.NewReader("\ufefftitle,content,url,document_id\nA,Text.,u,7\n"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(7), docs[0].ID)
	assert.Equal(t, "A", docs[0].Title)
	assert.Equal(t, "Text.", docs[0].Content)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing column", body: "document_id,title,content\n1,a,b\n", want: `"url"`},
		{name: "bad id", body: "document_id,title,url,content\nett,a,b,c\n", want: "line 2"},
		{name: "ragged row", body: "document_id,title,url,content\n1,a,b\n", want: "fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadCSV_Empty(t *testing.T) {
	docs, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoad_MixedInputs(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "monarchs.csv", monarchs)
	notes := filepath.Join(dir, "notes")
	require.NoError(t, os.Mkdir(notes, 0o700))
	writeFile(t, notes, "b.txt", "Andra filen.")
	writeFile(t, notes, "a.md", "Första filen.")
	writeFile(t, notes, "ignored.json", "{}")

	docs, err := Load([]string{csvPath, notes})
	require.NoError(t, err)
	require.Len(t, docs, 4)

	assert.Equal(t, int64(0), docs[0].ID)
	assert.Equal(t, int64(1), docs[1].ID)
	assert.Equal(t, int64(2), docs[2].ID)
	assert.Equal(t, "a", docs[2].Title)
	assert.Equal(t, "Första filen.", docs[2].Content)
	assert.True(t, strings.HasPrefix(docs[2].URL, "file://"))
	assert.True(t, strings.HasSuffix(docs[2].URL, "/notes/a.md"))
	assert.Equal(t, int64(3), docs[3].ID)
	assert.Equal(t, "b", docs[3].Title)
}

func TestLoad_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", "Ett.")
	writeFile(t, dir, "two.txt", "Två.")
	writeFile(t, dir, "skip.csv", monarchs)

	docs, err := Load([]string{filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(0), docs[0].ID)
	assert.Equal(t, "one", docs[0].Title)
}

func TestLoad_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", monarchs)
	b := writeFile(t, dir, "b.csv", monarchs)

	_, err := Load([]string{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document_id 0")
}

func TestLoad_NoDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.json", "{}")

	_, err := Load([]string{dir})
	assert.True(t, errors.Is(err, ErrNoDocuments))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load([]string{filepath.Join(t.TempDir(), "absent.txt")})
	assert.Error(t, err)
}

func TestLoad_BrokenPDF(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.pdf", "not a pdf")
	_, err := Load([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("x.CSV"))
	assert.True(t, Supported("x.pdf"))
	assert.False(t, Supported("x.docx"))
}

package fixture

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fooCSV = " user_id , email\n1,a@x.com\n\n2,b@x.com\n"

func TestNormalizeBlankLines(t *testing.T) {
	inputs := []string{
		"",
		"a\nb",
		"a\n\nb",
		"a\n\n\nb",
		"a\n\n\n\nb\n\n",
		"\n\nheader\n\n",
	}
	for _, in := range inputs {
		want := strings.ReplaceAll(in, "\n\n", "\n")
		assert.Equal(t, want, NormalizeBlankLines(in), "%q", in)

		got, err := io.ReadAll(newBlankLineReader(strings.NewReader(in)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got), "stream %q", in)
	}
}

func TestReader_HeaderAndRows(t *testing.T) {
	r := NewReader(strings.NewReader(NormalizeBlankLines(fooCSV)))
	defer r.Close()

	header, err := r.Header()
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "email"}, header)

	row, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, 1, row.Line)
	assert.Equal(t, map[string]string{"user_id": "1", "email": "a@x.com"}, row.Record())

	row, ok = r.Next()
	require.True(t, ok)
	assert.Equal(t, "2", row.Value(0))
	assert.Equal(t, "", row.Value(5))

	_, ok = r.Next()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestReader_HeaderOnlyAndEmpty(t *testing.T) {
	r := NewReader(strings.NewReader("id,name\n"))
	header, err := r.Header()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, header)
	_, ok := r.Next()
	assert.False(t, ok)

	r = NewReader(strings.NewReader(""))
	header, err = r.Header()
	require.NoError(t, err)
	assert.Nil(t, header)
	_, ok = r.Next()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestReader_ShortRowsAndQuotes(t *testing.T) {
	r := NewReader(strings.NewReader("id,note,extra\n1,\"a, b\"\n"))
	row, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "1", "note": "a, b", "extra": ""}, row.Record())
}

func TestReader_MalformedRecord(t *testing.T) {
	r := NewReader(strings.NewReader("id,note\n1,\"unterminated\n"))
	_, ok := r.Next()
	assert.False(t, ok)
	assert.Error(t, r.Err())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func compressed(t *testing.T, codec string, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch codec {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case "lz4":
		w = lz4.NewWriter(&buf)
	}
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadFile_Sources(t *testing.T) {
	paths := map[string]string{
		"plain": writeFile(t, "foo.csv", []byte(fooCSV)),
		"gzip":  writeFile(t, "foo.csv.gz", compressed(t, "gzip", fooCSV)),
		"zstd":  writeFile(t, "foo.csv.zst", compressed(t, "zstd", fooCSV)),
		"lz4":   writeFile(t, "foo.csv.lz4", compressed(t, "lz4", fooCSV)),
	}
	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			r, err := ReadFile(context.Background(), path, Options{})
			require.NoError(t, err)

			var emails []string
			for {
				row, ok := r.Next()
				if !ok {
					break
				}
				emails = append(emails, row.Record()["email"])
			}
			require.NoError(t, r.Err())
			assert.Equal(t, []string{"a@x.com", "b@x.com"}, emails)

			assert.NoError(t, r.Close())
			assert.NoError(t, r.Close())
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCompression(t *testing.T) {
	assert.Equal(t, "gzip", Compression("a.csv.GZ"))
	assert.Equal(t, "zstd", Compression("a.csv.zst"))
	assert.Equal(t, "lz4", Compression("s3://b/a.csv.lz4"))
	assert.Equal(t, "none", Compression("a.csv"))
}

func TestSplitS3Path(t *testing.T) {
	bucket, key, err := SplitS3Path("s3://fixtures/run/foo.csv")
	require.NoError(t, err)
	assert.Equal(t, "fixtures", bucket)
	assert.Equal(t, "run/foo.csv", key)

	for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := SplitS3Path(bad)
		assert.ErrorIs(t, err, ErrUnsupportedSource, bad)
	}
}

package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/filestore"
)

const crmDDL = "- table_name: a\n"

func newStore(t *testing.T, bucket string) *Driver {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ddl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ddl", "crm.yaml"), []byte(crmDDL), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "schema.yaml"), []byte("[]"), 0o644))

	d, err := New(&filestore.Config{Provider: filestore.ProviderLocal, Root: root, Bucket: bucket})
	require.NoError(t, err)
	return d
}

func TestGetObject(t *testing.T) {
	d := newStore(t, "")
	ctx := context.Background()

	obj, err := d.GetObject(ctx, "ddl", "crm.yaml")
	require.NoError(t, err)
	defer obj.Close()

	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, crmDDL, string(body))
	assert.Equal(t, int64(len(body)), obj.Info().Size)
	assert.Equal(t, "crm.yaml", obj.Info().Key)
	assert.NotEmpty(t, obj.Info().ETag)

	obj2, err := d.GetObject(ctx, "", "schema.yaml")
	require.NoError(t, err)
	obj2.Close()
}

func TestGetObject_DefaultBucket(t *testing.T) {
	d := newStore(t, "ddl")

	obj, err := d.GetObject(context.Background(), "", "crm.yaml")
	require.NoError(t, err)
	obj.Close()

	_, err = d.GetObject(context.Background(), "", "schema.yaml")
	assert.True(t, errs.IsNotFound(err), "root files sit outside the default bucket")
}

func TestGetObject_Errors(t *testing.T) {
	d := newStore(t, "")
	ctx := context.Background()

	_, err := d.GetObject(ctx, "ddl", "missing.yaml")
	assert.True(t, errs.IsNotFound(err))

	_, err = d.GetObject(ctx, "", "ddl")
	assert.True(t, errs.IsNotFound(err), "directories are not objects")

	_, err = d.GetObject(ctx, "", "../etc/passwd")
	assert.True(t, errs.IsInvalidInput(err))

	_, err = d.GetObject(ctx, "", "")
	assert.True(t, errs.IsInvalidInput(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.GetObject(cancelled, "ddl", "crm.yaml")
	assert.True(t, errs.IsTimeout(err))
}

func TestReadAll(t *testing.T) {
	d := newStore(t, "ddl")
	ctx := context.Background()

	data, info, err := filestore.ReadAll(ctx, d, "", "crm.yaml", filestore.DefaultMaxObjectSize)
	require.NoError(t, err)
	assert.Equal(t, crmDDL, string(data))
	assert.Equal(t, "crm.yaml", info.Key)

	_, _, err = filestore.ReadAll(ctx, d, "", "crm.yaml", 4)
	assert.True(t, errs.IsInvalidInput(err))
	assert.True(t, strings.Contains(err.Error(), "limit"))

	data, _, err = filestore.ReadAll(ctx, d, "", "crm.yaml", 0)
	require.NoError(t, err)
	assert.Len(t, data, len(crmDDL))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&filestore.Config{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = New(&filestore.Config{Root: filepath.Join(t.TempDir(), "absent")})
	assert.True(t, errs.IsNotFound(err))

	_, err = New(&filestore.Config{Root: t.TempDir(), Bucket: "nope"})
	assert.True(t, errs.IsNotFound(err))
}

package store

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "gateway-routes.json")
}

func TestOpenBootstrapsWhenFileIsMissing(t *testing.T) {
	t.Parallel()

	st, err := Open(docPath(t), "bootstrap-pw")
	require.NoError(t, err)

	snap := st.Current()
	assert.Equal(t, 0, snap.RuleCount())
	assert.Equal(t, sha256.Sum256([]byte("bootstrap-pw")), snap.SecretHash())

	_, err = snap.Route("/anything")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestOpenBootstrapsWhenFileIsCorrupt(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	st, err := Open(path, "bootstrap-pw")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Current().RuleCount())

	// The unusable file must be left in place for the operator to inspect.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}

func TestOpenLoadsExistingDocument(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "unused")
	require.NoError(t, err)
	require.NoError(t, st.Replace(validDocument()))

	reopened, err := Open(path, "unused")
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Current().RuleCount())

	dec, err := reopened.Current().Route("/ws")
	require.NoError(t, err)
	assert.Equal(t, "ws", dec.RuleID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	st, err := Open(docPath(t), "pw")
	require.NoError(t, err)

	want := validDocument()
	require.NoError(t, st.Save(want))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveWritesRestrictedModeAndNoStraggler(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "pw")
	require.NoError(t, err)
	require.NoError(t, st.Save(validDocument()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not survive a successful save")
}

func TestWroteSumTracksOwnWrites(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "pw")
	require.NoError(t, err)

	assert.False(t, st.WroteSum(sha256.Sum256([]byte("anything"))),
		"nothing saved yet")

	require.NoError(t, st.Save(validDocument()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, st.WroteSum(sha256.Sum256(raw)))
	assert.False(t, st.WroteSum(sha256.Sum256(append(raw, ' '))))
}

func TestReplaceIsAllOrNothing(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "pw")
	require.NoError(t, err)
	require.NoError(t, st.Replace(validDocument()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := validDocument()
	bad.Rules[0].Backend = "not a backend"
	err = st.Replace(bad)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected write must not touch the file")
	assert.Equal(t, 2, st.Current().RuleCount(), "rejected write must not touch the table")
}

func TestReplaceIgnoresCredentialInBody(t *testing.T) {
	t.Parallel()

	st, err := Open(docPath(t), "pw")
	require.NoError(t, err)

	doc := validDocument()
	doc.AdminPassword = "smuggled"
	require.NoError(t, st.Replace(doc))

	assert.Equal(t, sha256.Sum256([]byte("pw")), st.Current().SecretHash(),
		"table writes must not rotate the credential")

	// And the persisted file carries the real credential, not the smuggled one.
	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "pw", loaded.AdminPassword)
}

func TestRotate(t *testing.T) {
	t.Parallel()

	st, err := Open(docPath(t), "old-pw")
	require.NoError(t, err)

	err = st.Rotate("wrong", "new-pw")
	assert.ErrorIs(t, err, ErrBadCredential)
	assert.Equal(t, sha256.Sum256([]byte("old-pw")), st.Current().SecretHash())

	require.NoError(t, st.Rotate("old-pw", "new-pw"))
	assert.Equal(t, sha256.Sum256([]byte("new-pw")), st.Current().SecretHash())

	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-pw", loaded.AdminPassword, "rotation must persist")
}

func TestReloadKeepsTableOnBadFile(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "pw")
	require.NoError(t, err)
	require.NoError(t, st.Replace(validDocument()))

	require.NoError(t, os.WriteFile(path, []byte(`{"rules":[{"id":""}]}`), 0o600))
	err = st.Reload()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 2, st.Current().RuleCount(), "failed reload must keep the previous table")
}

func TestReloadPicksUpExternalWrite(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "pw")
	require.NoError(t, err)

	doc := validDocument()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	require.NoError(t, st.Reload())
	assert.Equal(t, 2, st.Current().RuleCount())
}

func TestRawDocumentReturnsFileVerbatim(t *testing.T) {
	t.Parallel()

	path := docPath(t)
	st, err := Open(path, "pw")
	require.NoError(t, err)
	require.NoError(t, st.Replace(validDocument()))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	raw, err := st.RawDocument()
	require.NoError(t, err)
	assert.Equal(t, onDisk, raw)
}

func TestRawDocumentFallsBackToBootstrap(t *testing.T) {
	t.Parallel()

	st, err := Open(docPath(t), "pw")
	require.NoError(t, err)

	raw, err := st.RawDocument()
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "pw", doc.AdminPassword)
	assert.Empty(t, doc.Rules)
}

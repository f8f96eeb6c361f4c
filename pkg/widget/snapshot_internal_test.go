package widget

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildSnapshot(sessionID string) Snapshot {
	return Snapshot{
		Messages: []Message{
			{ID: 1, Type: MessageTypeBot, Text: "Hi!", HadAnswer: true, Confidence: DefaultConfidence},
			{ID: 2, Type: MessageTypeUser, Text: "Hello"},
		},
		SessionID:     sessionID,
		FeedbackGiven: map[int64]bool{1: true},
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	store.Save("acme", buildSnapshot("w-100abc"))

	loadedSnapshot := store.Load("acme")
	require.NotNil(t, loadedSnapshot)
	require.Equal(t, "w-100abc", loadedSnapshot.SessionID)
	require.Len(t, loadedSnapshot.Messages, 2)
	require.True(t, loadedSnapshot.FeedbackGiven[1])
	require.NotZero(t, loadedSnapshot.Timestamp)
}

func TestSnapshotStoreIsolatesTenants(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	store.Save("acme", buildSnapshot("w-acme"))
	store.Save("globex", buildSnapshot("w-globex"))

	require.Equal(t, "w-acme", store.Load("acme").SessionID)
	require.Equal(t, "w-globex", store.Load("globex").SessionID)

	store.Clear("acme")
	require.Nil(t, store.Load("acme"))
	require.NotNil(t, store.Load("globex"))
}

func TestSnapshotStoreExpiresAfterFreshnessWindow(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	savedAt := time.Now()
	store.now = func() time.Time { return savedAt }
	store.Save("acme", buildSnapshot("w-100abc"))

	store.now = func() time.Time { return savedAt.Add(SnapshotTTL - time.Minute) }
	require.NotNil(t, store.Load("acme"))

	store.now = func() time.Time { return savedAt.Add(SnapshotTTL) }
	require.Nil(t, store.Load("acme"))
}

func TestSnapshotStoreAnswersNilForMissingOrCorruptFiles(t *testing.T) {
	stateDirectory := t.TempDir()
	store := NewSnapshotStore(stateDirectory, nil)

	require.Nil(t, store.Load("acme"))

	require.NoError(t, os.WriteFile(filepath.Join(stateDirectory, "bobot_acme.json"), []byte("{not json"), snapshotFileMode))
	require.Nil(t, store.Load("acme"))
}

func TestSnapshotStoreDefaultsFeedbackMap(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)
	snapshot := buildSnapshot("w-100abc")
	snapshot.FeedbackGiven = nil
	store.Save("acme", snapshot)

	loadedSnapshot := store.Load("acme")
	require.NotNil(t, loadedSnapshot)
	require.NotNil(t, loadedSnapshot.FeedbackGiven)
	require.Empty(t, loadedSnapshot.FeedbackGiven)
}

func TestSnapshotStoreSanitizesTenantIDInFilenames(t *testing.T) {
	stateDirectory := t.TempDir()
	store := NewSnapshotStore(stateDirectory, nil)
	store.Save("acme/../../etc", buildSnapshot("w-100abc"))

	_, statErr := os.Stat(filepath.Join(stateDirectory, "bobot_acme_______etc.json"))
	require.NoError(t, statErr)
	require.NotNil(t, store.Load("acme/../../etc"))
}

func TestConsentSentinelLifecycle(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), nil)

	require.False(t, store.LoadConsent("acme"))
	store.SaveConsent("acme")
	require.True(t, store.LoadConsent("acme"))
	require.False(t, store.LoadConsent("globex"))

	store.ClearConsent("acme")
	require.False(t, store.LoadConsent("acme"))
	store.ClearConsent("acme")
}

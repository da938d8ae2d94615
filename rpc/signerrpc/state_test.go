package signerrpc

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Manta-Network/manta-signer/seedmgr"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var (
	testSeed  = bytes.Repeat([]byte{0x42}, 64)
	otherSeed = bytes.Repeat([]byte{0x24}, 64)
)

// mockLoader decrypts a fixed seed per password.
type mockLoader struct {
	seeds map[string][]byte
}

func newMockLoader() *mockLoader {
	return &mockLoader{seeds: map[string][]byte{
		"right": testSeed,
		"other": otherSeed,
	}}
}

func (l *mockLoader) LoadRootSeed(passphrase []byte) ([]byte, error) {
	seed, ok := l.seeds[string(passphrase)]
	if !ok {
		return nil, seedmgr.ManagerError{
			ErrorCode:   seedmgr.ErrWrongPassphrase,
			Description: "invalid passphrase",
		}
	}
	return append([]byte(nil), seed...), nil
}

// mockAuthorizer answers Password with the scripted passwords in order.  An
// empty entry declines, and so does running out of entries.
type mockAuthorizer struct {
	mtx       sync.Mutex
	passwords []string
	prompts   []*Prompt
	asked     int
	successes int
}

func newMockAuthorizer(passwords ...string) *mockAuthorizer {
	return &mockAuthorizer{passwords: passwords}
}

func (m *mockAuthorizer) script(passwords ...string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.passwords = append(m.passwords, passwords...)
}

func (m *mockAuthorizer) Wake(_ context.Context, p *Prompt) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.prompts = append(m.prompts, p)
	return nil
}

func (m *mockAuthorizer) Password(ctx context.Context) ([]byte, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.asked++
	if len(m.passwords) == 0 {
		return nil, ErrRejected
	}
	next := m.passwords[0]
	m.passwords = m.passwords[1:]
	if next == "" {
		return nil, ErrRejected
	}
	return []byte(next), nil
}

func (m *mockAuthorizer) Success(context.Context) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.successes++
	return nil
}

func (m *mockAuthorizer) counts() (prompts, asked, successes int) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.prompts), m.asked, m.successes
}

func newTestState(auth Authorizer) *rootSeedState {
	return newRootSeedState(newMockLoader(), auth, clock.NewDefaultClock(),
		time.Millisecond)
}

func TestGetRootSeed(t *testing.T) {
	t.Parallel()

	auth := newMockAuthorizer("wrong", "right")
	s := newTestState(auth)
	ctx := context.Background()

	seed, err := s.getRootSeed(ctx, NewPrompt(PromptGenerateAsset))
	require.NoError(t, err)
	require.Equal(t, testSeed, seed.Bytes())
	seed.Destroy()

	prompts, asked, successes := auth.counts()
	require.Equal(t, 1, prompts)
	require.Equal(t, 2, asked)
	require.Equal(t, 1, successes)

	// Once unlocked, non sensitive requests do not prompt.
	seed, err = s.getRootSeed(ctx, NewPrompt(PromptMint))
	require.NoError(t, err)
	require.Equal(t, testSeed, seed.Bytes())
	seed.Destroy()

	prompts, asked, _ = auth.counts()
	require.Equal(t, 1, prompts)
	require.Equal(t, 2, asked)
}

func TestGetRootSeedRejected(t *testing.T) {
	t.Parallel()

	auth := newMockAuthorizer("wrong", "")
	s := newTestState(auth)

	_, err := s.getRootSeed(context.Background(), NewPrompt(PromptMint))
	require.ErrorIs(t, err, ErrRejected)
	require.False(t, s.isUnlocked())

	_, _, successes := auth.counts()
	require.Zero(t, successes)
}

func TestCheckRootSeed(t *testing.T) {
	t.Parallel()

	auth := newMockAuthorizer("right")
	s := newTestState(auth)
	ctx := context.Background()
	require.NoError(t, s.unlock(ctx))

	tests := []struct {
		name      string
		passwords []string
		err       error
		asked     int
	}{
		{
			name:      "same seed",
			passwords: []string{"right"},
			asked:     1,
		},
		{
			name:      "different seed then same",
			passwords: []string{"other", "wrong", "right"},
			asked:     3,
		},
		{
			name:      "declined",
			passwords: []string{"other", ""},
			err:       ErrRejected,
			asked:     2,
		},
	}

	p := &Prompt{Type: PromptReclaim, Amount: "1", CurrencySymbol: "DOT"}
	for _, test := range tests {
		_, askedBefore, _ := auth.counts()
		auth.script(test.passwords...)

		seed, err := s.checkRootSeed(ctx, p)
		if test.err != nil {
			require.ErrorIs(t, err, test.err, test.name)
		} else {
			require.NoError(t, err, test.name)
			require.Equal(t, testSeed, seed.Bytes(), test.name)
			seed.Destroy()
		}

		_, asked, _ := auth.counts()
		require.Equal(t, test.asked, asked-askedBefore, test.name)

		// The held seed never changes.
		require.True(t, s.isUnlocked(), test.name)
	}
}

func TestCheckRootSeedLocked(t *testing.T) {
	t.Parallel()

	// Without a held seed the first accepted password unlocks the signer.
	auth := newMockAuthorizer("other")
	s := newTestState(auth)

	seed, err := s.checkRootSeed(context.Background(),
		NewPrompt(PromptPrivateTransfer))
	require.NoError(t, err)
	require.Equal(t, otherSeed, seed.Bytes())
	seed.Destroy()
	require.True(t, s.isUnlocked())
}

func TestUnlockRetriesDeclines(t *testing.T) {
	t.Parallel()

	auth := newMockAuthorizer("", "wrong", "", "right")
	s := newTestState(auth)
	require.NoError(t, s.unlock(context.Background()))

	prompts, asked, successes := auth.counts()
	require.Zero(t, prompts)
	require.Equal(t, 4, asked)
	require.Equal(t, 1, successes)
}

func TestUnlockCanceled(t *testing.T) {
	t.Parallel()

	s := newTestState(newMockAuthorizer())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.unlock(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestRetryWaitsOnClock(t *testing.T) {
	t.Parallel()

	start := time.Unix(1600000000, 0)
	testClock := clock.NewTestClock(start)
	auth := newMockAuthorizer("wrong", "right")
	s := newRootSeedState(newMockLoader(), auth, testClock, time.Minute)

	done := make(chan error, 1)
	go func() {
		seed, err := s.getRootSeed(context.Background(),
			NewPrompt(PromptGenerateAsset))
		if seed != nil {
			seed.Destroy()
		}
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("second attempt made before the retry delay")
	case <-time.After(50 * time.Millisecond):
	}

	// The ticker may register after a SetTime, so keep advancing.
	now := start
	for i := 0; i < 100; i++ {
		now = now.Add(time.Minute)
		testClock.SetTime(now)
		select {
		case err := <-done:
			require.NoError(t, err)
			_, asked, _ := auth.counts()
			require.Equal(t, 2, asked)
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("unlock did not finish")
}

package peermgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	dialed []NodeID
	fail   map[NodeID]bool
}

func (f *fakeDialer) Dial(ctx context.Context, nodeID NodeID, address string) error {
	if f.fail[nodeID] {
		return context.DeadlineExceeded
	}
	f.dialed = append(f.dialed, nodeID)
	return nil
}

func TestActivateMorePeersConnectsBestRated(t *testing.T) {
	dialer := &fakeDialer{fail: map[NodeID]bool{}}
	book := NewAddressBook(nil, dialer, nil, 1)

	book.Upsert("low", "10.0.0.1:9000")
	book.Upsert("high", "10.0.0.2:9000")
	book.Rate("low", 1)
	book.Rate("high", 50)

	book.ActivateMorePeers(context.Background())

	require.Equal(t, []NodeID{"high"}, dialer.dialed)
}

func TestActivateMorePeersSkipsBanned(t *testing.T) {
	dialer := &fakeDialer{fail: map[NodeID]bool{}}
	book := NewAddressBook(nil, dialer, nil, 5)

	book.Upsert("banned", "10.0.0.1:9000")
	book.Ban("banned", time.Now().Add(time.Hour))

	book.ActivateMorePeers(context.Background())

	require.Empty(t, dialer.dialed)
}

func TestFlushOnlyWritesWhenDirty(t *testing.T) {
	book := NewAddressBook(nil, &fakeDialer{}, nil, 1)
	require.NoError(t, book.Flush(context.Background()))
}

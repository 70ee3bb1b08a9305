package blackchannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeChannel struct {
	sent   [][]byte
	toRecv [][]byte
}

func (f *fakeChannel) Send(frame []byte) error {
	cp := append([]byte{}, frame...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeChannel) Recv(buffer []byte) (int, error) {
	if len(f.toRecv) == 0 {
		return 0, nil
	}
	next := f.toRecv[0]
	f.toRecv = f.toRecv[1:]
	n := copy(buffer, next)
	return n, nil
}

func TestSendRemembersLastSent(t *testing.T) {
	ch := &fakeChannel{}
	m := NewManager(ch, 6)

	assert.NoError(t, m.Send([]byte{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, m.LastSent())
}

func TestRecvReturnsZeroFrameOnFirstDelivery(t *testing.T) {
	ch := &fakeChannel{toRecv: [][]byte{{0, 0, 0, 0, 0, 0}}}
	m := NewManager(ch, 6)

	data, ok, err := m.Recv()
	assert.NoError(t, err)
	assert.True(t, ok, "an all-zero first frame must still count as new data")
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, data)
}

func TestRecvSuppressesDuplicateDelivery(t *testing.T) {
	frame := []byte{1, 2, 3, 4, 5, 6}
	ch := &fakeChannel{toRecv: [][]byte{frame, frame}}
	m := NewManager(ch, 6)

	_, ok1, _ := m.Recv()
	assert.True(t, ok1)

	_, ok2, _ := m.Recv()
	assert.False(t, ok2, "repeat of the last received frame must not count as new")
}

func TestRecvNoFrameAvailable(t *testing.T) {
	ch := &fakeChannel{}
	m := NewManager(ch, 6)

	data, ok, err := m.Recv()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestRecvDistinctFramesBothCountAsNew(t *testing.T) {
	ch := &fakeChannel{toRecv: [][]byte{
		{1, 1, 1, 1, 1, 1},
		{2, 2, 2, 2, 2, 2},
	}}
	m := NewManager(ch, 6)

	_, ok1, _ := m.Recv()
	_, ok2, _ := m.Recv()
	assert.True(t, ok1)
	assert.True(t, ok2)
}

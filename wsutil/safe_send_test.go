package wsutil

import "testing"

func TestSafeSend(t *testing.T) {
	ch := make(chan []byte, 1)
	if !SafeSend(ch, []byte("a")) {
		t.Fatal("expected first send to be queued")
	}
	if SafeSend(ch, []byte("b")) {
		t.Error("expected full channel to drop")
	}
	<-ch
	close(ch)
	if SafeSend(ch, []byte("c")) {
		t.Error("expected closed channel to drop")
	}
	if SafeSend(nil, []byte("d")) {
		t.Error("expected nil channel to drop")
	}
}

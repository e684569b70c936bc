package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBufferPop(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || !bytes.Equal(buf.Data(), []byte{3, 4, 5}) {
		t.Errorf("after pop: %v", buf.Data())
	}
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("over-pop left %d bytes", buf.Available())
	}
}

func TestScratchOutputPatch(t *testing.T) {
	out := NewScratchOutput()

	// length byte patched after the body is known, as frames do
	start := out.CurPosition()
	out.Output([]byte{0, 0x11})
	out.Output([]byte{7, 8, 9})
	out.Update(start, byte(out.CurPosition()-start))

	if !bytes.Equal(out.Result(), []byte{5, 0x11, 7, 8, 9}) {
		t.Errorf("result %v", out.Result())
	}
	if !bytes.Equal(out.DataSince(2), []byte{7, 8, 9}) {
		t.Errorf("DataSince(2) = %v", out.DataSince(2))
	}

	out.Reset()
	if out.CurPosition() != 0 || len(out.Result()) != 0 {
		t.Errorf("reset left %v", out.Result())
	}
}

func TestFifoBufferCapacity(t *testing.T) {
	fifo := NewFifoBuffer(10)
	if !fifo.IsEmpty() || fifo.Free() != 9 {
		t.Fatalf("new fifo: empty %v free %d", fifo.IsEmpty(), fifo.Free())
	}

	// one slot stays free
	if n := fifo.Write(make([]byte, 12)); n != 9 {
		t.Errorf("wrote %d bytes into a 10 byte fifo", n)
	}
	if fifo.Free() != 0 || fifo.Write([]byte{1}) != 0 {
		t.Error("full fifo accepted data")
	}
}

func TestFifoBufferStream(t *testing.T) {
	testCases := []struct {
		name   string
		writes [][]byte
		pops   []int
		want   []byte
	}{
		{"linear", [][]byte{{1, 2, 3}, {4}}, []int{1}, []byte{2, 3, 4}},
		{"wrap", [][]byte{{1, 2, 3, 4}, {5, 6}}, []int{2, 0}, []byte{3, 4, 5, 6}},
		{"drain then refill", [][]byte{{1, 2, 3, 4}, {5, 6, 7}}, []int{4, 1}, []byte{6, 7}},
	}

	for _, tc := range testCases {
		fifo := NewFifoBuffer(5)
		for i, w := range tc.writes {
			if n := fifo.Write(w); n != len(w) {
				t.Errorf("%s: write %d stored %d of %d", tc.name, i, n, len(w))
			}
			if i < len(tc.pops) {
				fifo.Pop(tc.pops[i])
			}
		}
		if got := fifo.Data(); !bytes.Equal(got, tc.want) {
			t.Errorf("%s: data %v, expected %v", tc.name, got, tc.want)
		}

		read := make([]byte, 8)
		n := fifo.Read(read)
		if !bytes.Equal(read[:n], tc.want) || !fifo.IsEmpty() {
			t.Errorf("%s: read %v", tc.name, read[:n])
		}
	}
}

// A frame split across two reads stays buffered until it is complete
func TestFifoBufferPartialFrame(t *testing.T) {
	frame, err := BuildFrame(MessageDest, func(out OutputBuffer) {
		EncodeVLQUint(out, 3)
	})
	if err != nil {
		t.Fatal(err)
	}

	var dispatched int
	output := NewScratchOutput()
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		dispatched++
		return nil
	})

	fifo := NewFifoBuffer(MessageMax)
	fifo.Write(frame[:3])
	tr.Receive(fifo)
	if dispatched != 0 || fifo.Available() != 3 {
		t.Fatalf("partial frame: dispatched %d, %d bytes left", dispatched, fifo.Available())
	}

	fifo.Write(frame[3:])
	tr.Receive(fifo)
	if dispatched != 1 || !fifo.IsEmpty() {
		t.Errorf("complete frame: dispatched %d, %d bytes left", dispatched, fifo.Available())
	}
}
